package geom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// papers maps preset names to portrait page sizes. ISO sizes are defined in
// millimeters, US sizes in inches.
var papers = map[string]Size{
	"a0": {Width: Mm(841), Height: Mm(1189)},
	"a1": {Width: Mm(594), Height: Mm(841)},
	"a2": {Width: Mm(420), Height: Mm(594)},
	"a3": {Width: Mm(297), Height: Mm(420)},
	"a4": {Width: Mm(210), Height: Mm(297)},
	"a5": {Width: Mm(148), Height: Mm(210)},
	"a6": {Width: Mm(105), Height: Mm(148)},

	"iso-b4": {Width: Mm(250), Height: Mm(353)},
	"iso-b5": {Width: Mm(176), Height: Mm(250)},

	"us-letter":  {Width: In(8.5), Height: In(11)},
	"us-legal":   {Width: In(8.5), Height: In(14)},
	"us-tabloid": {Width: In(11), Height: In(17)},
	"us-ledger":  {Width: In(17), Height: In(11)},
}

// Paper looks up a paper preset by name, case insensitively.
func Paper(name string) (Size, error) {
	size, ok := papers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Size{}, fmt.Errorf("unknown paper %q", name)
	}
	return size, nil
}

// PaperNames returns all preset names in natural order, so "a10" would sort
// after "a4" rather than before it.
func PaperNames() []string {
	names := make([]string, 0, len(papers))
	for name := range papers {
		names = append(names, name)
	}
	sort.Sort(natural.StringSlice(names))
	return names
}

// PaperName returns the preset name matching size, or an empty string when
// the size is not a known preset.
func PaperName(size Size) string {
	for _, name := range PaperNames() {
		if papers[name].Eq(size) {
			return name
		}
	}
	return ""
}
