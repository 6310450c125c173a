package export

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"quire/geom"
	"quire/layout"
)

func TestRenderPreview(t *testing.T) {
	doc := makeTestDocument(t)
	page := doc.Pages[0]

	data, err := renderPreview(page)
	if err != nil {
		t.Fatalf("renderPreview() error = %v", err)
	}

	img, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}

	size := page.Setup.EffectiveSize()
	wantW, wantH := px(size.Width.Pt()), px(size.Height.Pt())
	if img.Width != wantW || img.Height != wantH {
		t.Errorf("Preview size = %dx%d, want %dx%d", img.Width, img.Height, wantW, wantH)
	}
}

func TestRenderPreview_Flipped(t *testing.T) {
	doc := makeTestDocument(t)
	page := doc.Pages[1]

	data, err := renderPreview(page)
	if err != nil {
		t.Fatalf("renderPreview() error = %v", err)
	}

	img, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}

	if img.Width <= img.Height {
		t.Errorf("Flipped page preview should be landscape, got %dx%d", img.Width, img.Height)
	}
}

func TestRenderPreview_TooSmall(t *testing.T) {
	page := &layout.Page{
		Number: 1,
		Setup: layout.Setup{
			Size:    geom.Size{Width: geom.Pt(10), Height: geom.Pt(10)},
			Columns: 1,
		},
	}

	if _, err := renderPreview(page); err == nil {
		t.Error("renderPreview() should fail for tiny pages")
	}
}

func TestWritePreviewFiles(t *testing.T) {
	log := setupTestLogger(t)
	tmpDir := t.TempDir()

	doc := makeTestDocument(t)
	outputPath := filepath.Join(tmpDir, "book.txt")

	if err := WritePreviewFiles(doc, outputPath, log); err != nil {
		t.Fatalf("WritePreviewFiles() error = %v", err)
	}

	dir := filepath.Join(tmpDir, "book.preview")
	for _, name := range []string{"page00001.png", "page00002.png"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
			t.Errorf("%s is not a valid PNG: %v", name, err)
		}
	}
}

func TestBlockHeightPt(t *testing.T) {
	doc := makeTestDocument(t)
	blocks := doc.Pages[0].Blocks

	heading := blockHeightPt(blocks[0])
	text := blockHeightPt(blocks[1])
	container := blockHeightPt(blocks[2])

	if heading <= 0 || text <= 0 || container <= 0 {
		t.Error("Block height estimates must be positive")
	}
	if container <= blockHeightPt(blocks[2].Children[0]) {
		t.Error("Container must be taller than its own content")
	}
}
