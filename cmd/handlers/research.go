/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"newsroom/internal/config"
	"newsroom/internal/logger"
	"newsroom/internal/research"
)

// NewResearchCmd creates the browser research command
func NewResearchCmd() *cobra.Command {
	var (
		keywordsFile string
		resultsFile  string
		topic        string
	)

	cmd := &cobra.Command{
		Use:   "research",
		Short: "Find article URLs for keywords with a remote browser agent",
		Long: `Start a remote browser sandbox and have an agent look up one news article per
keyword. Results are saved as {keyword: url}; failed lookups are recorded as
"error".

With --topic, the agent instead visits each configured news source once and
reports one article per source.

Examples:
  # Keywords from the configured keywords file
  newsroom research

  # One topic across all configured sources
  newsroom research --topic "interest rates"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResearch(cmd.Context(), keywordsFile, resultsFile, topic)
		},
	}

	cmd.Flags().StringVar(&keywordsFile, "keywords", "", "keywords file (default from config)")
	cmd.Flags().StringVarP(&resultsFile, "output", "o", "", "results file (default from config)")
	cmd.Flags().StringVar(&topic, "topic", "", "collect one article per source for this topic")

	return cmd
}

func runResearch(ctx context.Context, keywordsFile, resultsFile, topic string) error {
	if err := cfg.ValidateResearch(); err != nil {
		return err
	}

	sandbox, err := research.NewHTTPSandbox(research.SandboxOptions{
		APIKey:     cfg.Research.APIKey,
		BaseURL:    cfg.Research.BaseURL,
		Timeout:    config.Duration(cfg.Research.Timeout, 0),
		MaxRetries: cfg.LLM.MaxRetries,
	})
	if err != nil {
		return err
	}
	agent := research.NewAgent(sandbox, research.AgentOptions{
		Model:       cfg.Research.Model,
		Temperature: cfg.Research.Temperature,
		Backoff:     config.Duration(cfg.Research.Backoff, research.DefaultBackoff),
		Sources:     cfg.Research.Sources,
	})

	ctx, stop := signalContext(ctx)
	defer stop()

	if topic != "" {
		articles, err := agent.CollectSources(ctx, topic)
		if err != nil {
			return err
		}
		fields := make([]field, 0, len(articles))
		for _, a := range articles {
			fields = append(fields, field{a.Source, a.URL})
		}
		printSummary(os.Stdout, fmt.Sprintf("Sources for %q", topic), fields...)
		return nil
	}

	if keywordsFile == "" {
		keywordsFile = cfg.Research.KeywordsFile
	}
	if resultsFile == "" {
		resultsFile = cfg.Research.ResultsFile
	}

	keywords, err := research.LoadKeywords(keywordsFile)
	if err != nil {
		return err
	}
	if len(keywords) == 0 {
		logger.Warn("No keywords to research", "file", keywordsFile)
		return nil
	}

	results, runErr := agent.Run(ctx, keywords)
	// Partial results are still worth keeping
	if len(results) > 0 {
		if err := research.SaveResults(resultsFile, results); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("research run failed: %w", runErr)
	}

	found := len(research.URLs(results))
	printSummary(os.Stdout, "Research complete",
		field{"Keywords", strconv.Itoa(len(keywords))},
		field{"Found", strconv.Itoa(found)},
		field{"Failed", strconv.Itoa(len(results) - found)},
		field{"Results", resultsFile},
	)
	return nil
}
