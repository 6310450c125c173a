package config

import "strings"

// CleanFileName strips characters the host file system rejects in a file
// name, the set comes from the per OS invalidNameChars. Leading dots go
// too so generated names never come out hidden. A name with nothing left
// is replaced with a recognizable placeholder.
func CleanFileName(in string) string {
	out := strings.Map(func(sym rune) rune {
		if sym == 0 || strings.ContainsRune(invalidNameChars, sym) {
			return -1
		}
		return sym
	}, in)
	out = strings.TrimLeft(out, ".")
	if len(out) == 0 {
		out = "_bad_file_name_"
	}
	return out
}
