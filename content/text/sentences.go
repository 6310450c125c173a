// Package text provides sentence splitting for the automatic flow. It wraps
// the punkt tokenizer with the compiled-in English model.
package text

import (
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
)

// Splitter segments plain text into sentences.
type Splitter struct {
	*sentences.DefaultSentenceTokenizer
}

// NewSplitter builds a splitter around the compiled-in English training
// data. When the model fails to load, splitting is turned off and the
// returned nil splitter degrades to whole-text behavior.
func NewSplitter(log *zap.Logger) *Splitter {
	if log == nil {
		log = zap.NewNop()
	}
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to initialize sentence tokenizer, turning off sentence splitting", zap.Error(err))
		return nil
	}
	return &Splitter{tokenizer}
}

// Split returns the sentences of in. A nil splitter returns the input as a
// single sentence.
func (s *Splitter) Split(in string) []string {
	var out []string
	if s == nil {
		return append(out, in)
	}

	for _, sentence := range s.Tokenize(in) {
		out = append(out, sentence.Text)
	}

	// The tokenizer attaches a sentence's trailing spaces to the next
	// sentence. Move them back so concatenating a prefix of the result
	// reproduces the original text boundary exactly.

	for i := range len(out) - 1 {
		for idx, sym := range out[i+1] {
			if !unicode.IsSpace(sym) {
				out[i] = out[i] + out[i+1][0:idx]
				out[i+1] = out[i+1][idx:]
				break
			}
		}
	}
	return out
}
