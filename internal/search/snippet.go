package search

import (
	"strings"

	"github.com/rivo/uniseg"
)

const ellipsis = "…"

// Truncate cuts s to at most width terminal cells without splitting a
// grapheme cluster, appending an ellipsis when anything was dropped.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if uniseg.StringWidth(s) <= width {
		return s
	}

	var sb strings.Builder
	used := 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if used+w > width-1 {
			break
		}
		sb.WriteString(cluster)
		used += w
	}
	return strings.TrimRight(sb.String(), " \t") + ellipsis
}

// snippet picks the first line mentioning a query term, falling back to the
// first non-blank line.
func snippet(content string, terms []string, width int) string {
	var first string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if first == "" {
			first = line
		}
		lower := strings.ToLower(line)
		for _, t := range terms {
			if strings.Contains(lower, t) {
				return Truncate(line, width)
			}
		}
	}
	return Truncate(first, width)
}
