package frame

import (
	"strings"
	"unicode/utf8"
)

func segments(path string) []string { return strings.Split(path, "/") }

func leaf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// uniqueNames computes the unique and short names of every path. The result depends only
// on the set of paths.
func uniqueNames(paths []string) (unique, short map[string]string) {
	split := make(map[string][]string, len(paths))
	count := make(map[string]int)
	for _, p := range paths {
		segs := segments(p)
		split[p] = segs
		for k := 1; k <= len(segs); k++ {
			count[strings.Join(segs[len(segs)-k:], "/")]++
		}
	}

	unique = make(map[string]string, len(paths))
	for _, p := range paths {
		segs := split[p]
		name := p
		for k := 1; k < len(segs); k++ {
			if s := strings.Join(segs[len(segs)-k:], "/"); count[s] == 1 {
				name = s
				break
			}
		}
		unique[p] = name
	}

	candidates := make(map[string]string, len(paths))
	used := make(map[string]int, len(paths))
	for _, p := range paths {
		c := abbreviate(unique[p])
		candidates[p] = c
		used[c]++
	}
	short = make(map[string]string, len(paths))
	for _, p := range paths {
		if c := candidates[p]; used[c] == 1 {
			short[p] = c
		} else {
			short[p] = unique[p]
		}
	}
	return unique, short
}

// abbreviate keeps the leaf and the first rune of every other segment.
func abbreviate(name string) string {
	segs := segments(name)
	for i := 0; i < len(segs)-1; i++ {
		if _, size := utf8.DecodeRuneInString(segs[i]); size > 0 {
			segs[i] = segs[i][:size]
		}
	}
	return strings.Join(segs, "/")
}
