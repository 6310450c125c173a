package geom

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// ParseLength parses a CSS style dimension such as "40pt" or "2.5cm". A bare
// number is taken as points. Percentages and relative units are rejected,
// page geometry is absolute.
func ParseLength(s string) (Length, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Length{}, fmt.Errorf("empty length")
	}

	lexer := css.NewLexer(parse.NewInput(bytes.NewReader([]byte(s))))
	tt, data := lexer.Next()
	switch tt {
	case css.DimensionToken:
		value, unit := splitDimension(string(data))
		u, err := ParseUnit(unit)
		if err != nil {
			return Length{}, fmt.Errorf("unable to parse length %q: %w", s, err)
		}
		return Length{Value: value, Unit: u}, nil
	case css.NumberToken:
		value, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return Length{}, fmt.Errorf("unable to parse length %q: %w", s, err)
		}
		return Pt(value), nil
	case css.PercentageToken:
		return Length{}, fmt.Errorf("unable to parse length %q: percentages are not absolute", s)
	default:
		return Length{}, fmt.Errorf("unable to parse length %q", s)
	}
}

// splitDimension extracts the numeric value and unit suffix from a dimension
// token.
func splitDimension(s string) (float64, string) {
	numEnd := 0
	for i, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == '-' || r == '+' {
			numEnd = i + 1
		} else {
			break
		}
	}
	if numEnd == 0 {
		return 0, strings.ToLower(s)
	}
	value, _ := strconv.ParseFloat(s[:numEnd], 64)
	return value, strings.ToLower(s[numEnd:])
}
