// Package export writes compiled documents out in the supported output
// formats and owns output file naming.
package export

import (
	"fmt"
	"strings"
)

// Specification of requested output type.
type Format int

const (
	FormatText Format = iota
	FormatXML
	FormatBundle
)

var formatNames = map[Format]string{
	FormatText:   "text",
	FormatXML:    "xml",
	FormatBundle: "bundle",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

func (f Format) IsValid() bool {
	_, ok := formatNames[f]
	return ok
}

// Ext returns the output file extension for the format.
func (f Format) Ext() string {
	switch f {
	case FormatText:
		return ".txt"
	case FormatXML:
		return ".xml"
	case FormatBundle:
		return ".quire"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}

// FormatNames lists the accepted format names in declaration order.
func FormatNames() []string {
	return []string{"text", "xml", "bundle"}
}

func ParseFormat(name string) (Format, error) {
	for f, n := range formatNames {
		if strings.EqualFold(name, n) {
			return f, nil
		}
	}
	return Format(0), fmt.Errorf("%q is not a valid output format", name)
}

func MustParseFormat(name string) Format {
	f, err := ParseFormat(name)
	if err != nil {
		panic(err)
	}
	return f
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(text []byte) error {
	v, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
