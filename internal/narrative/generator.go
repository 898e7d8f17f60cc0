// Package narrative drafts and refines the multi-topic newsletter and runs
// the draft, evaluate, refine loop.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"newsroom/internal/core"
	"newsroom/internal/llm"
	"newsroom/internal/logger"
	"newsroom/internal/quality"
)

// Section is one topic's source analysis.
type Section struct {
	Topic   string
	Content string
}

// SectionsFrom orders analyses by topics, dropping topics with no analysis.
func SectionsFrom(analyses map[string]string, topics []string) []Section {
	sections := make([]Section, 0, len(analyses))
	for _, t := range topics {
		if content, ok := analyses[t]; ok {
			sections = append(sections, Section{Topic: t, Content: content})
		}
	}
	return sections
}

// Options holds drafting settings.
type Options struct {
	Temperature     float64
	MaxTokens       int
	RefineMaxTokens int
	SectionWordsMin int
	SectionWordsMax int
}

// DefaultOptions returns the stock drafting settings.
func DefaultOptions() Options {
	return Options{
		Temperature:     0.7,
		MaxTokens:       4000,
		RefineMaxTokens: 1500,
		SectionWordsMin: 400,
		SectionWordsMax: 500,
	}
}

// Generator writes newsletter drafts with a chat model.
type Generator struct {
	client llm.ChatClient
	opts   Options
}

// NewGenerator creates a new newsletter generator.
func NewGenerator(client llm.ChatClient, opts Options) *Generator {
	return &Generator{client: client, opts: opts}
}

// Draft writes the initial newsletter from the topic analyses.
func (g *Generator) Draft(ctx context.Context, sections []Section) (core.Draft, error) {
	if len(sections) == 0 {
		return core.Draft{}, core.ErrNoAnalyses
	}
	topics := topicsOf(sections)

	logger.Info("Generating draft", "provider", g.client.Provider(), "topics", len(topics))
	resp, err := g.client.Chat(ctx, llm.ChatRequest{
		System:      systemPrompt(topics, ""),
		Messages:    llm.User(draftPrompt(sections, g.opts.SectionWordsMin, g.opts.SectionWordsMax)),
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	})
	if err != nil {
		return core.Draft{}, fmt.Errorf("draft generation failed: %w", err)
	}

	draft := toDraft(resp, topics)
	logDraft("Draft generated", resp)
	return draft, nil
}

// Refine rewrites draft to address feedback, keeping its topics.
func (g *Generator) Refine(ctx context.Context, draft core.Draft, feedback string) (core.Draft, error) {
	resp, err := g.client.Chat(ctx, llm.ChatRequest{
		System:      systemPrompt(draft.Sections, feedback),
		Messages:    llm.User(refinePrompt(draft.Text, g.opts.SectionWordsMin, g.opts.SectionWordsMax)),
		MaxTokens:   g.opts.RefineMaxTokens,
		Temperature: g.opts.Temperature,
	})
	if err != nil {
		return core.Draft{}, fmt.Errorf("refinement failed: %w", err)
	}

	refined := toDraft(resp, draft.Sections)
	logDraft("Refinement done", resp)
	return refined, nil
}

func toDraft(resp *llm.ChatResponse, topics []string) core.Draft {
	return core.Draft{
		Text:         strings.TrimSpace(resp.Text),
		Sections:     topics,
		FinishReason: resp.FinishReason,
	}
}

func logDraft(msg string, resp *llm.ChatResponse) {
	logger.Info(msg,
		"finish_reason", resp.FinishReason,
		"tokens_used", resp.InputTokens+resp.OutputTokens)
	if resp.Truncated() {
		logger.Warn("Draft may be truncated due to max token limit")
	}
}

func topicsOf(sections []Section) []string {
	topics := make([]string, len(sections))
	for i, s := range sections {
		topics[i] = s.Topic
	}
	return topics
}

func bulletList(topics []string) string {
	lines := make([]string, len(topics))
	for i, t := range topics {
		lines[i] = "- " + t
	}
	return strings.Join(lines, "\n")
}

func systemPrompt(topics []string, feedback string) string {
	var b strings.Builder
	b.WriteString("You are creating a daily digest newsletter that synthesizes content from exactly these categories:\n")
	b.WriteString(bulletList(topics))
	b.WriteString("\n\nKEY RULES:\n")
	b.WriteString("1. ONLY include content from the provided source materials\n")
	b.WriteString("2. NEVER generate content not present in sources\n")
	b.WriteString("3. ONLY cover these specific categories\n")
	b.WriteString("4. Maintain original details and facts\n")
	b.WriteString("5. Group content by these exact category names")
	if feedback != "" {
		b.WriteString("\n\nIMPROVEMENT FEEDBACK TO ADDRESS:\n")
		b.WriteString(feedback)
	}
	return b.String()
}

func draftPrompt(sections []Section, minWords, maxWords int) string {
	topics := bulletList(topicsOf(sections))

	var b strings.Builder
	b.WriteString("Create a multi-category newsletter from ONLY the provided content. For each category:\n\n")
	b.WriteString("1. Use only information from that category's source content\n")
	b.WriteString("2. Do not add any information not present in sources\n")
	b.WriteString("3. Group under these exact category headings:\n")
	b.WriteString(topics)
	b.WriteString("\n")

	band := quality.WordBand(minWords, maxWords)
	if band != "" {
		fmt.Fprintf(&b, "4. STRICTLY maintain %s words per section - this is crucial\n", band)
		b.WriteString("5. Use a friendly, engaging tone while maintaining factual accuracy\n\n")
		b.WriteString("IMPORTANT LENGTH REQUIREMENT:\n")
		fmt.Fprintf(&b, "- Each section MUST be %s words\n", band)
		fmt.Fprintf(&b, "- Current categories requiring %s words each: %s\n", band, topics)
		if total := targetWords(minWords, maxWords) * len(sections); total > 0 {
			fmt.Fprintf(&b, "- Total length should be %d words approximately\n", total)
		}
	} else {
		b.WriteString("4. Use a friendly, engaging tone while maintaining factual accuracy\n")
	}

	b.WriteString("\nContent to synthesize by category:\n")
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Category: %s\nContent:\n%s", s.Topic, s.Content)
	}
	return b.String()
}

func refinePrompt(draft string, minWords, maxWords int) string {
	var b strings.Builder
	b.WriteString("Here is the current newsletter draft that needs improvement:\n\n")
	b.WriteString(draft)
	b.WriteString("\n\nPlease refine this newsletter draft while:\n")
	b.WriteString("1. Maintaining all factual content\n")
	b.WriteString("2. Addressing the improvement feedback\n")
	if band := quality.WordBand(minWords, maxWords); band != "" {
		fmt.Fprintf(&b, "3. Keeping each section %s words\n", band)
	} else {
		b.WriteString("3. Keeping each section's current length\n")
	}
	b.WriteString("4. Using the same category structure\n")
	b.WriteString("5. Ensuring a friendly, engaging tone\n\n")
	b.WriteString("Provide the improved newsletter in plain text format.")
	return b.String()
}

// targetWords is the midpoint of the band, or its one bound.
func targetWords(minWords, maxWords int) int {
	switch {
	case minWords > 0 && maxWords > 0:
		return (minWords + maxWords) / 2
	case maxWords > 0:
		return maxWords
	default:
		return minWords
	}
}
