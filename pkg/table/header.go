package table

import "fmt"

// CleanHeaders makes sheet headers usable as unique column keys. The first
// occurrence of a name is kept; later occurrences get _1, _2, ... and blank
// headers become empty_1, empty_2, ...
func CleanHeaders(headers []string) []string {
	used := make(map[string]bool, len(headers))
	dupes := make(map[string]int)
	cleaned := make([]string, 0, len(headers))
	for _, h := range headers {
		if h != "" && !used[h] {
			used[h] = true
			cleaned = append(cleaned, h)
			continue
		}
		prefix := h
		if h == "" {
			prefix = "empty"
		}
		var name string
		for {
			dupes[h]++
			name = fmt.Sprintf("%s_%d", prefix, dupes[h])
			if !used[name] {
				break
			}
		}
		used[name] = true
		cleaned = append(cleaned, name)
	}
	return cleaned
}
