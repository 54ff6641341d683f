package export

import "strings"

// wrapText greedily wraps text into lines no wider than maxWidth at
// the given font size. A single word wider than the line gets its own
// line rather than being split mid-word.
func wrapText(fm FontMetrics, text string, size, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	cur := words[0]
	for _, word := range words[1:] {
		candidate := cur + " " + word
		if fm.TextWidth(candidate, size) <= maxWidth {
			cur = candidate
			continue
		}
		lines = append(lines, cur)
		cur = word
	}
	return append(lines, cur)
}
