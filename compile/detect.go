package compile

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// srcEncoding is the Unicode encoding detected from a source file BOM.
type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

// sniffLen bytes from the head of a file are enough for both the type
// detector and the BOM checks.
const sniffLen = 512

// sourceExtensions lists the extensions the front ends accept, lower case
// with the dot.
var sourceExtensions = []string{".qm", ".md"}

func isUTF8BOM3(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF
}

func isUTF16BigEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFE && buf[1] == 0xFF
}

func isUTF16LittleEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xFE
}

func isUTF32BigEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0x00 && buf[1] == 0x00 && buf[2] == 0xFE && buf[3] == 0xFF
}

func isUTF32LittleEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0xFF && buf[1] == 0xFE && buf[2] == 0x00 && buf[3] == 0x00
}

// detectUTF recognizes the encoding from the BOM if any. UTF-32 LE has to be
// checked before UTF-16 LE, its BOM starts with the same two bytes.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case isUTF8BOM3(buf):
		return encUTF8
	case isUTF32BigEndianBOM4(buf):
		return encUTF32BigEndian
	case isUTF32LittleEndianBOM4(buf):
		return encUTF32LittleEndian
	case isUTF16BigEndianBOM2(buf):
		return encUTF16BigEndian
	case isUTF16LittleEndianBOM2(buf):
		return encUTF16LittleEndian
	default:
		return encUnknown
	}
}

// selectReader wraps r with a decoder translating the detected encoding to
// plain UTF-8 without BOM, which is what the front ends expect.
func selectReader(r io.Reader, enc srcEncoding) io.Reader {
	switch enc {
	case encUnknown:
		return r
	case encUTF8:
		return unicode.UTF8BOM.NewDecoder().Reader(r)
	case encUTF16BigEndian:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Reader(r)
	case encUTF16LittleEndian:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Reader(r)
	case encUTF32BigEndian:
		return utf32.UTF32(utf32.BigEndian, utf32.UseBOM).NewDecoder().Reader(r)
	case encUTF32LittleEndian:
		return utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewDecoder().Reader(r)
	default:
		// this should never happen
		panic(fmt.Sprintf("unsupported source encoding (%d)", enc))
	}
}

func hasSourceExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, known := range sourceExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// sniffFile reads the first sniffLen bytes of a file.
func sniffFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// isArchiveFile checks that path is a zip archive, by extension and content.
func isArchiveFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}
	buf, err := sniffFile(path)
	if err != nil {
		return false, err
	}
	return filetype.Is(buf, "zip"), nil
}

// isSourceFile checks that path looks like a document source: a known front
// end extension and text content.
func isSourceFile(path string) (bool, srcEncoding, error) {
	if !hasSourceExt(path) {
		return false, encUnknown, nil
	}
	buf, err := sniffFile(path)
	if err != nil {
		return false, encUnknown, err
	}
	ok, enc := looksLikeText(buf)
	return ok, enc, nil
}

// isSourceInArchive is isSourceFile for a zip entry.
func isSourceInArchive(f *zip.File) (bool, srcEncoding, error) {
	if !hasSourceExt(f.Name) {
		return false, encUnknown, nil
	}
	r, err := f.Open()
	if err != nil {
		return false, encUnknown, err
	}
	defer r.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, encUnknown, err
	}
	ok, enc := looksLikeText(buf[:n])
	return ok, enc, nil
}

// looksLikeText accepts BOM tagged Unicode outright. Without a BOM the
// sample must not match a known binary type and must not contain NUL bytes,
// untagged UTF-16/32 is not supported.
func looksLikeText(buf []byte) (bool, srcEncoding) {
	if enc := detectUTF(buf); enc != encUnknown {
		return true, enc
	}
	if kind, err := filetype.Match(buf); err == nil && kind != filetype.Unknown {
		return false, encUnknown
	}
	if bytes.IndexByte(buf, 0) >= 0 {
		return false, encUnknown
	}
	return true, encUnknown
}
