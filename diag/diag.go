// Package diag collects recoverable problems found while parsing and laying
// out a document. Diagnostics are values, not Go errors: a pass records them
// and keeps going.
package diag

import (
	"fmt"

	"quire/source"
)

// Severity ranks a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "error"
	}
}

// Diagnostic is a single problem anchored to the span of the construct that
// caused it.
type Diagnostic struct {
	Severity Severity
	Span     source.Span
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Error returns an error severity diagnostic.
func Error(span source.Span, message string) Diagnostic {
	return Diagnostic{Severity: SeverityError, Span: span, Message: message}
}

// Errorf returns an error severity diagnostic with a formatted message.
func Errorf(span source.Span, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Span: span, Message: fmt.Sprintf(format, args...)}
}

// Warning returns a warning severity diagnostic.
func Warning(span source.Span, message string) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Span: span, Message: message}
}

// Warningf returns a warning severity diagnostic with a formatted message.
func Warningf(span source.Span, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Span: span, Message: fmt.Sprintf(format, args...)}
}

// Collector accumulates diagnostics in the order they are recorded. It keeps
// every entry, duplicates included, and is not safe for concurrent use: a
// single pass owns it.
type Collector struct {
	diags []Diagnostic
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends one diagnostic.
func (c *Collector) Record(d Diagnostic) {
	c.diags = append(c.diags, d)
}

// Drain returns everything recorded so far and resets the collector.
func (c *Collector) Drain() []Diagnostic {
	out := c.diags
	c.diags = nil
	return out
}

// Len returns the number of recorded diagnostics.
func (c *Collector) Len() int {
	return len(c.diags)
}

// HasErrors reports whether any recorded diagnostic has error severity.
func (c *Collector) HasErrors() bool {
	for _, d := range c.diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
