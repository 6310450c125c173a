package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"quire/content"
	"quire/layout"
)

// previewScale converts page points to preview pixels, half scale keeps an
// a4 page around 300x420.
const previewScale = 0.5

var (
	previewPaper  = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	previewMargin = color.NRGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}
	previewBlock  = color.NRGBA{R: 0xe6, G: 0xe6, B: 0xe6, A: 0xff}
	previewImage  = color.NRGBA{R: 0xcd, G: 0xdc, B: 0xf0, A: 0xff}
	previewBorder = color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	previewInk    = color.NRGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xff}
)

func writePreviews(zw *zip.Writer, doc *Document, log *zap.Logger) error {
	for _, page := range doc.Pages {
		data, err := renderPreview(page)
		if err != nil {
			return fmt.Errorf("unable to render preview for page %d: %w", page.Number, err)
		}
		if err := writeDataToZip(zw, previewPartName(page.Number), data); err != nil {
			return err
		}
	}
	log.Debug("Previews rendered", zap.Int("pages", len(doc.Pages)))
	return nil
}

func previewPartName(number int) string {
	return fmt.Sprintf("preview/page%05d.png", number)
}

// WritePreviewFiles renders page previews as standalone files next to the
// main output, into <output without extension>.preview/.
func WritePreviewFiles(doc *Document, outputPath string, log *zap.Logger) error {
	dir := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".preview"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("unable to create preview directory: %w", err)
	}
	for _, page := range doc.Pages {
		data, err := renderPreview(page)
		if err != nil {
			return fmt.Errorf("unable to render preview for page %d: %w", page.Number, err)
		}
		name := filepath.Join(dir, fmt.Sprintf("page%05d.png", page.Number))
		if err := os.WriteFile(name, data, 0644); err != nil {
			return fmt.Errorf("unable to write preview %s: %w", name, err)
		}
	}
	log.Info("Previews written", zap.String("dir", dir), zap.Int("pages", len(doc.Pages)))
	return nil
}

// renderPreview draws a schematic of the page: the margin frame, one band
// per block, the page number in the bottom margin. It is a layout sketch,
// not a rendering.
func renderPreview(page *layout.Page) ([]byte, error) {
	size := page.Setup.EffectiveSize()
	w := px(size.Width.Pt())
	h := px(size.Height.Pt())
	if w < 16 || h < 16 {
		return nil, fmt.Errorf("page %d is too small to preview", page.Number)
	}

	canvas := imaging.New(w, h, previewPaper)

	m := page.Setup.Margins
	frame := image.Rect(px(m.Left.Pt()), px(m.Top.Pt()), w-px(m.Right.Pt()), h-px(m.Bottom.Pt()))
	if frame.Dx() > 0 && frame.Dy() > 0 {
		drawFrame(canvas, frame, previewMargin)
		sketchBlocks(canvas, frame, page.Blocks)
	}

	label := fmt.Sprintf("%d", page.Number)
	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(previewInk),
		Face: basicfont.Face7x13,
	}
	width := d.MeasureString(label).Ceil()
	d.Dot = fixed.P((w-width)/2, h-px(m.Bottom.Pt())/2+4)
	d.DrawString(label)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sketchBlocks(canvas *image.NRGBA, frame image.Rectangle, blocks []*content.Node) {
	y := frame.Min.Y + 2
	for _, block := range blocks {
		bh := px(blockHeightPt(block))
		if bh < 4 {
			bh = 4
		}
		if y+bh > frame.Max.Y {
			bh = frame.Max.Y - y
		}
		if bh <= 0 {
			break
		}
		if block.Kind != content.KindSpace {
			band := image.Rect(frame.Min.X+2, y, frame.Max.X-2, y+bh)
			fill := previewBlock
			if block.Kind == content.KindImage {
				fill = previewImage
			}
			fillRect(canvas, band, fill)
			drawFrame(canvas, band, previewBorder)
		}
		y += bh + 3
		if y >= frame.Max.Y {
			break
		}
	}
}

// blockHeightPt estimates a display height for the sketch. The numbers are
// cosmetic, the preview only has to suggest proportions.
func blockHeightPt(n *content.Node) float64 {
	switch n.Kind {
	case content.KindText:
		if n.Text.Heading {
			return 28
		}
		lines := len(n.Text.Body)/80 + 1
		return float64(lines) * 14
	case content.KindImage:
		if !n.Image.Height.IsZero() {
			return n.Image.Height.Pt()
		}
		return 120
	case content.KindContainer:
		total := 10.0
		for _, child := range n.Children {
			total += blockHeightPt(child) + 4
		}
		return total
	case content.KindSpace:
		return n.Space.Amount.Pt()
	case content.KindOther:
		return 40
	}
	return 12
}

func px(pt float64) int {
	return int(pt*previewScale + 0.5)
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func drawFrame(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetNRGBA(x, r.Min.Y, c)
		img.SetNRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetNRGBA(r.Min.X, y, c)
		img.SetNRGBA(r.Max.X-1, y, c)
	}
}
