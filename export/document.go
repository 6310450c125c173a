package export

import (
	"github.com/google/uuid"

	"quire/assets"
	"quire/diag"
	"quire/layout"
)

// Document is a compiled document ready to be written out. The compile step
// fills it, exporters only read it.
type Document struct {
	ID         uuid.UUID
	Title      string
	SourceName string // base name of the source file, extension included
	Pages      []*layout.Page
	Diags      []diag.Diagnostic
	Assets     []*assets.Asset

	// WorkDir is the scratch area for intermediate files. Empty means the
	// system temporary directory.
	WorkDir string
}
