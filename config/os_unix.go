//go:build !windows

package config

import (
	"os"

	"golang.org/x/term"
)

// invalidNameChars are the separator characters a POSIX file name must
// not contain.
const invalidNameChars = string(os.PathSeparator) + string(os.PathListSeparator)

// colorTerminal reports whether stream is a terminal ANSI color sequences
// can be sent to.
func colorTerminal(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
