package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"newsroom/internal/core"
	"newsroom/internal/logger"
)

const (
	// ErrorMarker is stored for keywords whose lookup failed.
	ErrorMarker = "error"
	// NotFound is the URL recorded for sources that yielded nothing.
	NotFound = "not_found"

	DefaultModel   = "claude-3-7-sonnet-20250219"
	DefaultBackoff = 10 * time.Second

	systemInstruction  = "You are a browser automation assistant. Execute commands exactly as written."
	collectInstruction = "Execute the steps for every source and return the URL collection."
)

// Source is one article the agent reported.
type Source struct {
	Title            string `json:"title"`
	URL              string `json:"url"`
	ReliabilityNotes string `json:"reliability_notes"`
}

// Result is the structured output of a keyword lookup.
type Result struct {
	Phrase         string   `json:"phrase"`
	Sources        []Source `json:"sources"`
	ContextSummary string   `json:"context_summary"`
}

type urlCollection struct {
	URLs []struct {
		URL    string `json:"url"`
		Source string `json:"source"`
	} `json:"urls"`
}

// SearchSite is how the agent finds articles on one outlet.
type SearchSite struct {
	Name     string
	URL      string // search URL with a %s for the escaped query
	Selector string // first-result link
}

// KnownSites are the outlets the agent has search steps for.
var KnownSites = map[string]SearchSite{
	"AP News":      {Name: "AP News", URL: "https://apnews.com/search?q=%s", Selector: "div.PagePromo-content a"},
	"The Guardian": {Name: "The Guardian", URL: "https://www.google.co.uk/search?q=%s&as_sitesearch=www.theguardian.com", Selector: "div.g > div > div > div > a"},
	"BBC News":     {Name: "BBC News", URL: "https://www.bbc.com/search?q=%s", Selector: "div.ssrcss-1ynlzyd-PromoSwitchLayoutAtBreakpoints a"},
	"Reuters":      {Name: "Reuters", URL: "https://www.reuters.com/site-search/?query=%s", Selector: "li[class*='search-results__item'] a"},
	"Fox News":     {Name: "Fox News", URL: "https://www.foxnews.com/search-results/search#q=%s", Selector: "div.search-results article a"},
	"The Hill":     {Name: "The Hill", URL: "https://thehill.com/?s=%s&submit=Search", Selector: "article.article-list__article a"},
}

// AgentOptions configures an Agent.
type AgentOptions struct {
	Model       string
	Temperature float64
	Backoff     time.Duration
	Sources     []string // outlet names for CollectSources
	Sleep       core.SleepFunc
}

// Agent runs research sessions on a sandbox.
type Agent struct {
	sandbox Sandbox
	opts    AgentOptions
}

// NewAgent creates an agent.
func NewAgent(sandbox Sandbox, opts AgentOptions) *Agent {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if len(opts.Sources) == 0 {
		opts.Sources = []string{"AP News"}
	}
	if opts.Sleep == nil {
		opts.Sleep = core.Sleep
	}
	return &Agent{sandbox: sandbox, opts: opts}
}

// Run looks up one AP News article per keyword and returns keyword -> URL.
// A failed lookup records ErrorMarker, waits the backoff and moves on. The
// instance is always stopped.
func (a *Agent) Run(ctx context.Context, keywords []string) (map[string]string, error) {
	results := make(map[string]string, len(keywords))

	err := a.withBrowser(ctx, func(id string) error {
		for _, keyword := range keywords {
			if err := ctx.Err(); err != nil {
				return err
			}

			logger.Info("Researching keyword", "keyword", keyword)
			link, err := a.lookup(ctx, id, keyword)
			if err != nil {
				logger.Error("Keyword research failed", err, "keyword", keyword)
				results[keyword] = ErrorMarker
				if err := a.opts.Sleep(ctx, a.opts.Backoff); err != nil {
					return err
				}
				continue
			}

			results[keyword] = link
			logger.Info("Found article", "keyword", keyword, "url", link)
		}
		return nil
	})
	return results, err
}

// CollectSources visits every configured outlet for topic in one task.
// Outlets that return nothing are reported with the NotFound URL.
func (a *Agent) CollectSources(ctx context.Context, topic string) ([]core.ArticleURL, error) {
	var articles []core.ArticleURL

	err := a.withBrowser(ctx, func(id string) error {
		resp, err := a.sandbox.Act(ctx, id, ActRequest{
			Model:       a.opts.Model,
			Tools:       []string{"browser"},
			System:      collectInstruction,
			Prompt:      collectPrompt(topic, a.sites()),
			Schema:      urlCollectionSchema(),
			Temperature: a.opts.Temperature,
		})
		if err != nil {
			return fmt.Errorf("source collection failed: %w", err)
		}

		var out urlCollection
		if err := json.Unmarshal(resp.Output, &out); err != nil {
			return fmt.Errorf("failed to parse source collection: %w", err)
		}

		found := make(map[string]string, len(out.URLs))
		for _, u := range out.URLs {
			if u.URL != "" && found[u.Source] == "" {
				found[u.Source] = u.URL
			}
		}
		for _, site := range a.sites() {
			link := found[site.Name]
			if link == "" {
				link = NotFound
			}
			articles = append(articles, core.ArticleURL{Keyword: topic, Source: site.Name, URL: link})
		}
		return nil
	})
	return articles, err
}

// withBrowser starts an instance and its browser, runs fn and stops the
// instance whatever happens.
func (a *Agent) withBrowser(ctx context.Context, fn func(id string) error) error {
	session := uuid.NewString()

	id, err := a.sandbox.Start(ctx)
	if err != nil {
		return err
	}
	logger.Info("Sandbox instance started", "session", session, "instance", id)

	defer func() {
		if err := a.sandbox.Stop(context.WithoutCancel(ctx), id); err != nil {
			logger.Warn("Failed to stop sandbox instance", "instance", id, "error", err.Error())
			return
		}
		logger.Info("Sandbox instance stopped", "session", session, "instance", id)
	}()

	if stream, err := a.sandbox.StreamURL(ctx, id); err != nil {
		logger.Warn("Stream URL unavailable", "instance", id, "error", err.Error())
	} else {
		logger.Info("Sandbox stream available", "url", stream)
	}

	if err := a.sandbox.StartBrowser(ctx, id); err != nil {
		return err
	}
	return fn(id)
}

func (a *Agent) lookup(ctx context.Context, id, keyword string) (string, error) {
	resp, err := a.sandbox.Act(ctx, id, ActRequest{
		Model:       a.opts.Model,
		Tools:       []string{"browser"},
		System:      systemInstruction,
		Prompt:      keywordPrompt(keyword),
		Schema:      resultSchema(),
		Temperature: a.opts.Temperature,
	})
	if err != nil {
		return "", err
	}

	var result Result
	if err := json.Unmarshal(resp.Output, &result); err != nil {
		return "", fmt.Errorf("failed to parse research result: %w", err)
	}
	if len(result.Sources) == 0 || result.Sources[0].URL == "" {
		return "", fmt.Errorf("no sources returned for %q", keyword)
	}
	return result.Sources[0].URL, nil
}

func (a *Agent) sites() []SearchSite {
	sites := make([]SearchSite, 0, len(a.opts.Sources))
	for _, name := range a.opts.Sources {
		if site, ok := KnownSites[name]; ok {
			sites = append(sites, site)
			continue
		}
		// Unknown outlets fall back to a site-restricted web search
		sites = append(sites, SearchSite{
			Name:     name,
			URL:      "https://www.google.com/search?q=%s+" + url.QueryEscape(name),
			Selector: "div.g a",
		})
	}
	return sites
}
