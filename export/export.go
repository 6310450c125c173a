package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"quire/state"
)

// Generate writes the document to outputPath in the requested format.
// An existing output file is an error unless overwriting was requested.
func Generate(ctx context.Context, format Format, doc *Document, outputPath string, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)

	if _, err := os.Stat(outputPath); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputPath)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputPath))
		if err = os.Remove(outputPath); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	log.Info("Generating output",
		zap.Stringer("format", format),
		zap.Int("pages", len(doc.Pages)),
		zap.String("output", outputPath))

	switch format {
	case FormatText:
		return generateText(doc, outputPath)
	case FormatXML:
		return generateXML(doc, outputPath)
	case FormatBundle:
		return generateBundle(ctx, doc, outputPath, env, log)
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}
