package sources

import (
	"fmt"
	"strings"
)

// headerNames turns a raw header row into unique column names, width wide.
// Blank headers become "Unnamed: N" (N is the zero-based position) and
// repeated names get ".1", ".2" suffixes in order of appearance.
func headerNames(raw []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	taken := make(map[string]bool, width)

	for i := 0; i < width; i++ {
		name := ""
		if i < len(raw) {
			name = strings.TrimSpace(raw[i])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		taken[name] = true
		names[i] = name
	}

	// Second pass so a literal "X.1" header keeps its name.
	used := make(map[string]bool, width)
	for i, name := range names {
		if !used[name] {
			used[name] = true
			seen[name] = 0
			continue
		}
		n := seen[name]
		candidate := name
		for {
			n++
			candidate = fmt.Sprintf("%s.%d", name, n)
			if !used[candidate] && !taken[candidate] {
				break
			}
		}
		seen[name] = n
		used[candidate] = true
		names[i] = candidate
	}
	return names
}
