// Package assets loads and validates the images a document references.
// Problems never abort a compilation: missing or broken images produce
// diagnostics and, optionally, a generated placeholder.
package assets

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"quire/diag"
	"quire/geom"
	"quire/source"
)

// cssPixelsPerInch converts intrinsic pixel sizes to points.
const cssPixelsPerInch = 96.0

// encodeJPEGQuality is used when a scaled JPEG has to be written back.
const encodeJPEGQuality = 85

const placeholderSize = 64

// Asset is a loaded image ready for export.
type Asset struct {
	Path        string
	Format      string // png, jpg, gif, svg, ...
	Data        []byte
	Image       image.Image // decoded raster, SVGs are rasterized
	Width       int         // intrinsic width in pixels
	Height      int
	Placeholder bool
}

// SizePt returns the intrinsic size in points at CSS pixel density.
func (a *Asset) SizePt() geom.Size {
	return geom.Size{
		Width:  geom.Pt(float64(a.Width) * 72.0 / cssPixelsPerInch),
		Height: geom.Pt(float64(a.Height) * 72.0 / cssPixelsPerInch),
	}
}

// Options control how the loader treats problematic images.
type Options struct {
	// Root is the directory image paths are resolved against.
	Root string
	// MinJPEGQuality warns when a JPEG was saved with a lower quality
	// setting. Zero disables the check.
	MinJPEGQuality int
	// MaxRasterDim caps raster dimensions in pixels. Larger images are
	// scaled down to fit and re-encoded. Zero disables scaling.
	MaxRasterDim int
	// UsePlaceholder substitutes a generated placeholder for images that
	// cannot be decoded instead of dropping them.
	UsePlaceholder bool
}

// Loader resolves and decodes image references. Loaded assets are cached by
// path. The loader is not safe for concurrent use.
type Loader struct {
	opts  Options
	log   *zap.Logger
	cache map[string]*Asset
}

// NewLoader returns a loader rooted at opts.Root.
func NewLoader(opts Options, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		opts:  opts,
		log:   log.Named("assets"),
		cache: make(map[string]*Asset),
	}
}

// Load reads and decodes the image at path, relative to the loader root.
// Failures are recorded into diags at span; the returned asset is nil when
// nothing usable could be produced.
func (l *Loader) Load(path string, span source.Span, diags *diag.Collector) *Asset {
	if a, ok := l.cache[path]; ok {
		return a
	}

	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(l.opts.Root, path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		l.log.Warn("Unable to read image", zap.String("path", full), zap.Error(err))
		diags.Record(diag.Errorf(span, "unable to read image %q", path))
		return nil
	}

	var asset *Asset
	if isSVG(data) {
		asset = l.loadSVG(path, data, span, diags)
	} else {
		asset = l.loadRaster(path, data, span, diags)
	}
	if asset != nil {
		l.cache[path] = asset
	}
	return asset
}

func (l *Loader) loadRaster(path string, data []byte, span source.Span, diags *diag.Collector) *Asset {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		l.log.Warn("Unable to decode image", zap.String("path", path), zap.Error(err))
		diags.Record(diag.Warningf(span, "unable to decode image %q", path))
		return l.placeholder(path)
	}

	if format == "jpeg" && l.opts.MinJPEGQuality > 0 {
		if q, err := Quality(data); err == nil && q < l.opts.MinJPEGQuality {
			diags.Record(diag.Warningf(span, "image %q was saved at JPEG quality %d, below the configured minimum %d", path, q, l.opts.MinJPEGQuality))
		}
	}

	// Prefer the extension the type detector reports, the decoder name is
	// not always a file extension.
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown && kind.Extension != "" {
		format = kind.Extension
	}

	if max := l.opts.MaxRasterDim; max > 0 && (img.Bounds().Dx() > max || img.Bounds().Dy() > max) {
		resized := imaging.Fit(img, max, max, imaging.Lanczos)
		encoded, newFormat, err := encodeRaster(resized, format)
		if err != nil {
			l.log.Warn("Unable to re-encode scaled image, keeping original", zap.String("path", path), zap.Error(err))
		} else {
			l.log.Debug("Image scaled down",
				zap.String("path", path),
				zap.Int("was_width", img.Bounds().Dx()), zap.Int("was_height", img.Bounds().Dy()),
				zap.Int("width", resized.Bounds().Dx()), zap.Int("height", resized.Bounds().Dy()))
			img, data, format = resized, encoded, newFormat
		}
	}

	return &Asset{
		Path:   path,
		Format: format,
		Data:   data,
		Image:  img,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}
}

// encodeRaster writes img back to bytes. JPEG stays JPEG, everything else
// becomes PNG since not all decodable formats have encoders.
func encodeRaster(img image.Image, format string) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	if format == "jpg" || format == "jpeg" {
		if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(encodeJPEGQuality)); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), format, nil
	}
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "png", nil
}

func (l *Loader) loadSVG(path string, data []byte, span source.Span, diags *diag.Collector) *Asset {
	img, err := rasterizeSVG(data, 0, 0)
	if err != nil {
		l.log.Warn("Unable to rasterize SVG", zap.String("path", path), zap.Error(err))
		diags.Record(diag.Warningf(span, "unable to rasterize image %q", path))
		return l.placeholder(path)
	}
	return &Asset{
		Path:   path,
		Format: "svg",
		Data:   data,
		Image:  img,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}
}

// placeholder builds a flat gray stand-in image when substitution is
// enabled.
func (l *Loader) placeholder(path string) *Asset {
	if !l.opts.UsePlaceholder {
		return nil
	}
	img := imaging.New(placeholderSize, placeholderSize, color.NRGBA{R: 0xCC, G: 0xCC, B: 0xCC, A: 0xFF})
	return &Asset{
		Path:        path,
		Format:      "png",
		Image:       img,
		Width:       placeholderSize,
		Height:      placeholderSize,
		Placeholder: true,
	}
}

// isSVG sniffs for an svg root element near the start of the data. SVG is
// text, the binary type detector cannot identify it.
func isSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("<svg"))
}
