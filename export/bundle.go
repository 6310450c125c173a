package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/disintegration/imaging"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"quire/assets"
	"quire/layout"
	"quire/misc"
	"quire/state"
)

// mimetypeContent identifies a quire bundle. It must be the first archive
// entry and must be stored uncompressed so sniffers can read it at a fixed
// offset.
const mimetypeContent = "application/x-quire+zip"

type manifestPage struct {
	Number int    `yaml:"number"`
	Part   string `yaml:"part"`
	Size   string `yaml:"size"`
	Blocks int    `yaml:"blocks"`
}

type manifestDiag struct {
	Severity string `yaml:"severity"`
	Message  string `yaml:"message"`
	Start    int    `yaml:"start"`
	End      int    `yaml:"end"`
}

type manifest struct {
	Version     int            `yaml:"version"`
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title,omitempty"`
	Source      string         `yaml:"source,omitempty"`
	Generator   string         `yaml:"generator"`
	Pages       []manifestPage `yaml:"pages"`
	Assets      []string       `yaml:"assets,omitempty"`
	Diagnostics []manifestDiag `yaml:"diagnostics,omitempty"`
}

// generateBundle writes the zip bundle: stored mimetype first, then
// manifest.yaml, one XML part per page, referenced assets and optional page
// previews. The archive is assembled in the work directory and only copied
// to outputPath once complete.
func generateBundle(ctx context.Context, doc *Document, outputPath string, env *state.LocalEnv, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	workDir := doc.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	_, tmpName := filepath.Split(outputPath)
	tmpName = filepath.Join(workDir, tmpName)

	f, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	if err := writeMimetype(zw); err != nil {
		return fmt.Errorf("unable to write mimetype: %w", err)
	}

	assetNames := assetPartNames(doc.Assets)

	if err := writeManifest(zw, doc, assetNames); err != nil {
		return fmt.Errorf("unable to write manifest: %w", err)
	}

	for _, page := range doc.Pages {
		if err := writePagePart(zw, page); err != nil {
			return fmt.Errorf("unable to write page %d: %w", page.Number, err)
		}
	}

	if err := writeAssetParts(zw, doc.Assets, assetNames, log); err != nil {
		return fmt.Errorf("unable to write assets: %w", err)
	}

	if env.Preview || env.Cfg.Output.Preview {
		if err := writePreviews(zw, doc, log); err != nil {
			return fmt.Errorf("unable to write previews: %w", err)
		}
	}

	// make sure buffers are flushed before continuing
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	// clean temporary file
	defer os.Remove(tmpName)

	if env.Cfg.Output.FixZip {
		return copyZipWithoutDataDescriptors(tmpName, outputPath)
	}
	return copyFile(tmpName, outputPath)
}

func writeMimetype(zw *zip.Writer) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, mimetypeContent)
	return err
}

func writeManifest(zw *zip.Writer, doc *Document, assetNames []string) error {
	m := manifest{
		Version:   1,
		ID:        doc.ID.String(),
		Title:     doc.Title,
		Source:    doc.SourceName,
		Generator: misc.GetAppName() + "/" + misc.GetVersion(),
		Assets:    assetNames,
	}
	for _, page := range doc.Pages {
		m.Pages = append(m.Pages, manifestPage{
			Number: page.Number,
			Part:   pagePartName(page.Number),
			Size:   page.Setup.EffectiveSize().String(),
			Blocks: len(page.Blocks),
		})
	}
	for _, d := range doc.Diags {
		m.Diagnostics = append(m.Diagnostics, manifestDiag{
			Severity: d.Severity.String(),
			Message:  d.Message,
			Start:    d.Span.Start,
			End:      d.Span.End,
		})
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("unable to marshal manifest: %w", err)
	}
	return writeDataToZip(zw, "manifest.yaml", data)
}

func pagePartName(number int) string {
	return fmt.Sprintf("pages/page%05d.xml", number)
}

func writePagePart(zw *zip.Writer, page *layout.Page) error {
	x := etree.NewDocument()
	x.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	pageElement(&x.Element, page)
	x.Indent(2)
	return writeXMLToZip(zw, pagePartName(page.Number), x)
}

// assetPartNames assigns a unique archive name to every asset. Base names
// collide easily when sources reference images from different directories.
func assetPartNames(list []*assets.Asset) []string {
	names := make([]string, len(list))
	taken := make(map[string]bool, len(list))
	for i, a := range list {
		base := filepath.Base(a.Path)
		if a.Placeholder || len(a.Data) == 0 {
			// placeholders are re-encoded as PNG
			base = strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
		}
		name := base
		for n := 1; taken[name]; n++ {
			name = fmt.Sprintf("%d-%s", n, base)
		}
		taken[name] = true
		names[i] = "assets/" + name
	}
	return names
}

func writeAssetParts(zw *zip.Writer, list []*assets.Asset, names []string, log *zap.Logger) error {
	for i, a := range list {
		data := a.Data
		if a.Placeholder || len(data) == 0 {
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, a.Image, imaging.PNG); err != nil {
				return fmt.Errorf("unable to encode placeholder for %q: %w", a.Path, err)
			}
			data = buf.Bytes()
			log.Debug("Bundling placeholder", zap.String("image", a.Path))
		}
		if err := writeDataToZip(zw, names[i], data); err != nil {
			return err
		}
	}
	return nil
}

func writeXMLToZip(zw *zip.Writer, name string, doc *etree.Document) error {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	return writeDataToZip(zw, name, buf.Bytes())
}

func writeDataToZip(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func copyZipWithoutDataDescriptors(from, to string) error {

	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		// copy zip entry
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destinationFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destinationFile.Close()

	if _, err = io.Copy(destinationFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	if err = destinationFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	return nil
}
