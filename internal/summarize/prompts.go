package summarize

import (
	"fmt"
	"strings"
)

// System prompts for the two synthesizer calls
const (
	AnalysisSystemPrompt = "You are an expert newsletter writer who creates comprehensive newsletters for users using as much of the same language and format as possible of the original documents."
	KeywordSystemPrompt  = "You are an expert at identifying key topics and themes."
)

// BuildAnalysisPrompt asks for a category newsletter covering every entry
func BuildAnalysisPrompt(category string, contents []string) string {
	return fmt.Sprintf(`Create a comprehensive %[1]s newsletter based on all these updates:
%[2]s

IMPORTANT: ONLY include information that is directly relevant to the %[1]s category. Completely ignore any content that is not specifically about %[1]s.

Create a well-structured newsletter that synthesizes all the relevant %[1]s information above. Structure it with:
- Latest Developments in %[1]s
- Key %[1]s Trends
- %[1]s Market Analysis
- Industry Insights
- Future Outlook for %[1]s

Ensure all important %[1]s-related information is preserved and woven together cohesively.
DO NOT include information from other sectors or categories unless it directly impacts %[1]s.`,
		category, strings.Join(contents, "\n\n"))
}

// BuildKeywordPrompt asks for 5-7 comma-separated keywords
func BuildKeywordPrompt(category, analysis string) string {
	return fmt.Sprintf(`From the following %s newsletter, identify the 5-7 most important topics/keywords.
Format your response as a simple comma-separated list with no explanations or additional text.

Newsletter:
%s`, category, analysis)
}

// ParseKeywords splits a comma-separated list. Models sometimes answer with
// a bulleted or numbered list instead, so one keyword per line is accepted
// too.
func ParseKeywords(response string) []string {
	response = strings.TrimSpace(response)
	if response == "" {
		return []string{}
	}

	var parts []string
	if strings.Contains(response, ",") {
		parts = strings.Split(response, ",")
	} else {
		parts = strings.Split(response, "\n")
	}

	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if k := stripListMarker(strings.TrimSpace(p)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

func stripListMarker(line string) string {
	for _, marker := range []string{"-", "•", "*"} {
		if rest, ok := strings.CutPrefix(line, marker); ok {
			return strings.TrimSpace(rest)
		}
	}
	if len(line) > 2 && line[0] >= '1' && line[0] <= '9' && (line[1] == '.' || line[1] == ')') {
		return strings.TrimSpace(line[2:])
	}
	return line
}
