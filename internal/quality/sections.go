package quality

import (
	"strings"
)

// SectionWordCounts splits a newsletter at lines naming one of the topics
// and counts the words under each. Topics without a heading are absent.
func SectionWordCounts(text string, topics []string) map[string]int {
	headings := make(map[string]string, len(topics))
	for _, t := range topics {
		headings[normalizeHeading(t)] = t
	}

	counts := make(map[string]int)
	current := ""
	for _, line := range strings.Split(text, "\n") {
		if topic, ok := headings[normalizeHeading(line)]; ok {
			current = topic
			if _, seen := counts[topic]; !seen {
				counts[topic] = 0
			}
			continue
		}
		if current != "" {
			counts[current] += len(strings.Fields(line))
		}
	}
	return counts
}

// OutOfBand returns the topics whose word count falls outside the band.
func OutOfBand(counts map[string]int, minWords, maxWords int) []string {
	var out []string
	for topic, n := range counts {
		if (minWords > 0 && n < minWords) || (maxWords > 0 && n > maxWords) {
			out = append(out, topic)
		}
	}
	return out
}

// normalizeHeading strips markdown heading marks, emphasis and a trailing
// colon so "## Tech:" matches "tech".
func normalizeHeading(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "#")
	s = strings.Trim(s, "*_ ")
	s = strings.TrimSuffix(s, ":")
	return strings.ToLower(strings.TrimSpace(s))
}
