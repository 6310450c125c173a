package compile

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// pngMagic is enough for the type detector to call the content a PNG.
var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

type zipEntry struct {
	name string
	data []byte
}

func writeZip(t *testing.T, path string, entries []zipEntry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	w := zip.NewWriter(f)
	for _, e := range entries {
		zf, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Store})
		if err != nil {
			t.Fatalf("create zip entry %q: %v", e.name, err)
		}
		if _, err := zf.Write(e.data); err != nil {
			t.Fatalf("write zip entry %q: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("finish zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

// encodeSample converts UTF-8 data into the given encoding, BOM included.
func encodeSample(t *testing.T, data []byte, enc srcEncoding) []byte {
	t.Helper()
	var encoder transform.Transformer
	switch enc {
	case encUnknown:
		return data
	case encUTF8:
		return append([]byte{0xEF, 0xBB, 0xBF}, data...)
	case encUTF16BigEndian:
		encoder = unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	case encUTF16LittleEndian:
		encoder = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	case encUTF32BigEndian:
		encoder = utf32.UTF32(utf32.BigEndian, utf32.UseBOM).NewEncoder()
	case encUTF32LittleEndian:
		encoder = utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewEncoder()
	default:
		t.Fatalf("unsupported encoding: %v", enc)
	}
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, encoder)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("encode sample: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("finalize sample: %v", err)
	}
	return buf.Bytes()
}

func TestIsArchiveFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("non-zip extension", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "notes.txt")
		if err := os.WriteFile(filePath, []byte("not a zip"), 0644); err != nil {
			t.Fatalf("create test file: %v", err)
		}
		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if got {
			t.Error("isArchiveFile() = true, want false")
		}
	})

	t.Run("zip extension with invalid content", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "fake.zip")
		if err := os.WriteFile(filePath, []byte("not a real zip file"), 0644); err != nil {
			t.Fatalf("create test file: %v", err)
		}
		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if got {
			t.Error("isArchiveFile() = true, want false")
		}
	})

	t.Run("valid zip file", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "real.zip")
		writeZip(t, filePath, []zipEntry{{"doc.qm", []byte("= Title")}})
		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if !got {
			t.Error("isArchiveFile() = false, want true")
		}
	})

	t.Run("non-existent file", func(t *testing.T) {
		if _, err := isArchiveFile("/nonexistent/file.zip"); err == nil {
			t.Error("expected error for non-existent file")
		}
	})
}

func TestDetectUTF(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want srcEncoding
	}{
		{"UTF-8 BOM", []byte{0xEF, 0xBB, 0xBF, 0x00}, encUTF8},
		{"UTF-16 big endian BOM", []byte{0xFE, 0xFF, 0x00, 0x00}, encUTF16BigEndian},
		// the extra bytes keep this from being a UTF-32 LE BOM
		{"UTF-16 little endian BOM", []byte{0xFF, 0xFE, 0x01, 0x00}, encUTF16LittleEndian},
		{"UTF-32 big endian BOM", []byte{0x00, 0x00, 0xFE, 0xFF}, encUTF32BigEndian},
		{"UTF-32 little endian BOM", []byte{0xFF, 0xFE, 0x00, 0x00}, encUTF32LittleEndian},
		{"no BOM", []byte{0x3D, 0x20, 0x54, 0x69}, encUnknown},
		{"empty", nil, encUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectUTF(tt.buf); got != tt.want {
				t.Errorf("detectUTF() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBOMHelpers(t *testing.T) {
	t.Run("isUTF8BOM3", func(t *testing.T) {
		if !isUTF8BOM3([]byte{0xEF, 0xBB, 0xBF}) {
			t.Error("expected true for UTF-8 BOM")
		}
		if isUTF8BOM3([]byte{0x00, 0x00, 0x00}) {
			t.Error("expected false for non-BOM")
		}
	})
	t.Run("isUTF16BigEndianBOM2", func(t *testing.T) {
		if !isUTF16BigEndianBOM2([]byte{0xFE, 0xFF}) {
			t.Error("expected true for UTF-16 BE BOM")
		}
		if isUTF16BigEndianBOM2([]byte{0xFF, 0xFE}) {
			t.Error("expected false for UTF-16 LE BOM")
		}
	})
	t.Run("isUTF16LittleEndianBOM2", func(t *testing.T) {
		if !isUTF16LittleEndianBOM2([]byte{0xFF, 0xFE}) {
			t.Error("expected true for UTF-16 LE BOM")
		}
		if isUTF16LittleEndianBOM2([]byte{0xFE, 0xFF}) {
			t.Error("expected false for UTF-16 BE BOM")
		}
	})
	t.Run("isUTF32BigEndianBOM4", func(t *testing.T) {
		if !isUTF32BigEndianBOM4([]byte{0x00, 0x00, 0xFE, 0xFF}) {
			t.Error("expected true for UTF-32 BE BOM")
		}
		if isUTF32BigEndianBOM4([]byte{0xFF, 0xFE, 0x00, 0x00}) {
			t.Error("expected false for UTF-32 LE BOM")
		}
	})
	t.Run("isUTF32LittleEndianBOM4", func(t *testing.T) {
		if !isUTF32LittleEndianBOM4([]byte{0xFF, 0xFE, 0x00, 0x00}) {
			t.Error("expected true for UTF-32 LE BOM")
		}
		if isUTF32LittleEndianBOM4([]byte{0x00, 0x00, 0xFE, 0xFF}) {
			t.Error("expected false for UTF-32 BE BOM")
		}
	})
}

func TestIsSourceFile(t *testing.T) {
	tmpDir := t.TempDir()

	qmContent := []byte("#page(paper: \"a5\")\n\n= Title\n\nBody text.\n")

	tests := []struct {
		name       string
		filename   string
		content    []byte
		wantSource bool
		wantEnc    srcEncoding
	}{
		{"native source", "doc.qm", qmContent, true, encUnknown},
		{"markdown source", "doc.md", []byte("# Title\n\nBody.\n"), true, encUnknown},
		{"native source with UTF-8 BOM", "bom.qm", append([]byte{0xEF, 0xBB, 0xBF}, qmContent...), true, encUTF8},
		{"uppercase extension", "doc.QM", qmContent, true, encUnknown},
		{"unknown extension", "doc.txt", qmContent, false, encUnknown},
		{"source extension with binary content", "image.qm", pngMagic, false, encUnknown},
		{"source extension with NUL bytes", "nulls.qm", []byte("text\x00more"), false, encUnknown},
		{"empty file", "empty.qm", nil, true, encUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filePath := filepath.Join(tmpDir, tt.filename)
			if err := os.WriteFile(filePath, tt.content, 0644); err != nil {
				t.Fatalf("create test file: %v", err)
			}

			gotSource, gotEnc, err := isSourceFile(filePath)
			if err != nil {
				t.Fatalf("isSourceFile() error = %v", err)
			}
			if gotSource != tt.wantSource {
				t.Errorf("isSourceFile() source = %v, want %v", gotSource, tt.wantSource)
			}
			if gotEnc != tt.wantEnc {
				t.Errorf("isSourceFile() encoding = %v, want %v", gotEnc, tt.wantEnc)
			}
		})
	}
}

func TestIsSourceFile_NonExistent(t *testing.T) {
	if _, _, err := isSourceFile("/nonexistent/file.qm"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestIsSourceInArchive(t *testing.T) {
	tmpDir := t.TempDir()
	zipPath := filepath.Join(tmpDir, "docs.zip")

	qmContent := []byte("= Archived document\n\nSome paragraph.\n")
	writeZip(t, zipPath, []zipEntry{
		{"doc.qm", qmContent},
		{"readme.txt", []byte("plain text, wrong extension")},
		{"bom.qm", append([]byte{0xEF, 0xBB, 0xBF}, qmContent...)},
		{"binary.qm", pngMagic},
	})

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()

	tests := []struct {
		name       string
		fileIdx    int
		wantSource bool
		wantEnc    srcEncoding
	}{
		{"source in archive", 0, true, encUnknown},
		{"wrong extension in archive", 1, false, encUnknown},
		{"source with BOM in archive", 2, true, encUTF8},
		{"binary content in archive", 3, false, encUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSource, gotEnc, err := isSourceInArchive(r.File[tt.fileIdx])
			if err != nil {
				t.Fatalf("isSourceInArchive() error = %v", err)
			}
			if gotSource != tt.wantSource {
				t.Errorf("isSourceInArchive() source = %v, want %v", gotSource, tt.wantSource)
			}
			if gotEnc != tt.wantEnc {
				t.Errorf("isSourceInArchive() encoding = %v, want %v", gotEnc, tt.wantEnc)
			}
		})
	}
}

func TestSelectReaderRoundTrip(t *testing.T) {
	sample := []byte("= Document title\n\nParagraph with ünïcödé.\n")

	tests := []struct {
		name string
		enc  srcEncoding
	}{
		{"plain", encUnknown},
		{"utf8 bom", encUTF8},
		{"utf16 be", encUTF16BigEndian},
		{"utf16 le", encUTF16LittleEndian},
		{"utf32 be", encUTF32BigEndian},
		{"utf32 le", encUTF32LittleEndian},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := encodeSample(t, sample, tt.enc)
			if got := detectUTF(encoded); got != tt.enc {
				t.Fatalf("detectUTF() on encoded sample = %v, want %v", got, tt.enc)
			}
			decoded, err := io.ReadAll(selectReader(bytes.NewReader(encoded), tt.enc))
			if err != nil {
				t.Fatalf("read through selected reader: %v", err)
			}
			if !bytes.Equal(decoded, sample) {
				t.Errorf("round trip mismatch:\n got %q\nwant %q", decoded, sample)
			}
		})
	}
}

func TestSelectReader_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for invalid encoding")
		}
	}()
	selectReader(bytes.NewReader([]byte("test")), srcEncoding(999))
}

func TestSrcEncodingValuesDistinct(t *testing.T) {
	encodings := []srcEncoding{
		encUnknown,
		encUTF8,
		encUTF16BigEndian,
		encUTF16LittleEndian,
		encUTF32BigEndian,
		encUTF32LittleEndian,
	}
	seen := make(map[srcEncoding]bool)
	for _, enc := range encodings {
		if seen[enc] {
			t.Errorf("duplicate encoding value: %v", enc)
		}
		seen[enc] = true
	}
	if len(seen) != 6 {
		t.Errorf("expected 6 unique encodings, got %d", len(seen))
	}
}
