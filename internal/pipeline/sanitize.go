package pipeline

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9 ]`)

// sanitize reduces summary text to a phrase safe for the classification
// request: only letters, digits and spaces survive.
func sanitize(text string) string {
	return strings.TrimSpace(nonAlphanumeric.ReplaceAllString(text, ""))
}

// listMarkers are the bullet characters summarization models embed in
// their output.
const listMarkers = "•●◦▪"

// stripInlineListMarkers drops list-marker characters that appear
// mid-line. Line-leading markers are kept so consumers can still render
// the summary as a list.
func stripInlineListMarkers(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		lead := line[:len(line)-len(trimmed)]

		var marker string
		for _, m := range strings.Split(listMarkers, "") {
			if strings.HasPrefix(trimmed, m) {
				marker = m
				break
			}
		}

		body := strings.TrimPrefix(trimmed, marker)
		for _, m := range strings.Split(listMarkers, "") {
			body = strings.ReplaceAll(body, m, "")
		}
		lines[i] = lead + marker + body
	}
	return strings.Join(lines, "\n")
}
