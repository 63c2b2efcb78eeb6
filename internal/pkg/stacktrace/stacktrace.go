package stacktrace

import "strings"

const marker = "/internal/"

// InternalPaths returns the file:line locations under internal/ found in a
// raw debug.Stack output, outermost frame last.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.Lines(string(stack)) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "/") {
			continue
		}

		if sp := strings.IndexByte(line, ' '); sp != -1 {
			line = line[:sp]
		}
		if !strings.Contains(line, ".go:") {
			continue
		}

		if idx := strings.Index(line, marker); idx != -1 {
			paths = append(paths, line[idx+1:])
		}
	}
	return paths
}
