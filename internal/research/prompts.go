package research

import (
	"fmt"
	"net/url"
	"strings"
)

const canonicalURLStep = `browser({"command": "evaluate", "code": "document.querySelector('link[rel=\"canonical\"]').getAttribute('href')"})`

func searchURL(site SearchSite, query string) string {
	return strings.Replace(site.URL, "%s", url.QueryEscape(query), 1)
}

func keywordPrompt(keyword string) string {
	site := KnownSites["AP News"]
	var b strings.Builder
	fmt.Fprintf(&b, "Find a recent article about %s from AP News.\n\n", keyword)
	fmt.Fprintf(&b, "1. Go to: %s\n", searchURL(site, keyword))
	fmt.Fprintf(&b, "2. Click first article link: browser({\"command\": \"click\", \"selector\": %q})\n", site.Selector)
	fmt.Fprintf(&b, "3. Get the URL: %s\n", canonicalURLStep)
	b.WriteString("4. Store this URL and remember it\n")
	b.WriteString("5. Get the article title\n\n")
	fmt.Fprintf(&b, "Return the article URL in ResearchResult format with the search phrase %q.", keyword)
	return b.String()
}

func collectPrompt(topic string, sites []SearchSite) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Collect one recent article URL about %s from each source below.\n", topic)
	b.WriteString("Open a new browser context for every source. If a step fails, record the URL as \"not_found\".\n")
	for _, site := range sites {
		fmt.Fprintf(&b, "\n%s:\n", site.Name)
		b.WriteString("1. browser({\"command\": \"new_context\"})\n")
		fmt.Fprintf(&b, "2. Go to: %s\n", searchURL(site, topic))
		b.WriteString("3. browser({\"command\": \"wait\", \"seconds\": 2})\n")
		fmt.Fprintf(&b, "4. Click first result: browser({\"command\": \"click\", \"selector\": %q})\n", site.Selector)
		fmt.Fprintf(&b, "5. Get the URL: %s\n", canonicalURLStep)
		fmt.Fprintf(&b, "6. Record it with source %q\n", site.Name)
	}
	b.WriteString("\nReturn every recorded URL in URLCollection format.")
	return b.String()
}

func resultSchema() map[string]any {
	return map[string]any{
		"title": "ResearchResult",
		"type":  "object",
		"properties": map[string]any{
			"phrase": map[string]any{"type": "string"},
			"sources": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":             map[string]any{"type": "string"},
						"url":               map[string]any{"type": "string"},
						"reliability_notes": map[string]any{"type": "string"},
					},
					"required": []string{"title", "url", "reliability_notes"},
				},
			},
			"context_summary": map[string]any{"type": "string"},
		},
		"required": []string{"phrase", "sources", "context_summary"},
	}
}

func urlCollectionSchema() map[string]any {
	return map[string]any{
		"title": "URLCollection",
		"type":  "object",
		"properties": map[string]any{
			"urls": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"url":    map[string]any{"type": "string"},
						"source": map[string]any{"type": "string"},
					},
					"required": []string{"url", "source"},
				},
			},
		},
		"required": []string{"urls"},
	}
}
