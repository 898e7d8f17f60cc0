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
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"newsroom/internal/config"
	"newsroom/internal/llm"
	"newsroom/internal/store"
	"newsroom/internal/summarize"
)

// NewSynthesizeCmd creates the topic synthesizer command
func NewSynthesizeCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Fold new emails into the per-topic analysis documents",
		Long: `Read the email table and, for every message not processed before, append it
to its topic's document and regenerate that topic's analysis and keywords.

Examples:
  # One pass over the table
  newsroom synthesize

  # Re-run whenever the table changes
  newsroom synthesize --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynthesize(cmd.Context(), watch)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "poll the email table and re-run when it changes")

	return cmd
}

func runSynthesize(ctx context.Context, watch bool) error {
	if err := cfg.ValidateSynthesizer(); err != nil {
		return err
	}

	client, err := llm.NewSynthesizer(cfg.LLM)
	if err != nil {
		return err
	}
	state, err := summarize.LoadState(cfg.Synthesizer.StatePath)
	if err != nil {
		return err
	}

	syn := summarize.New(client, store.NewTable(cfg.Poller.TablePath), state, summarize.Options{
		Dir:           cfg.Analysis.Directory,
		Model:         cfg.Synthesizer.Model,
		Temperature:   summarize.DefaultTemperature,
		RateLimitWait: config.Duration(cfg.Synthesizer.RateLimitWait, summarize.DefaultRateLimitWait),
		Interval:      config.Duration(cfg.Synthesizer.Interval, summarize.DefaultWatchInterval),
	})

	ctx, stop := signalContext(ctx)
	defer stop()

	if watch {
		return syn.Watch(ctx)
	}

	report, err := syn.RunOnce(ctx)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, "Synthesis complete",
		field{"Processed", strconv.Itoa(report.Processed)},
		field{"Empty", strconv.Itoa(report.Empty)},
		field{"Invalid", strconv.Itoa(report.Invalid)},
		field{"Failed", strconv.Itoa(report.Failed)},
		field{"Directory", cfg.Analysis.Directory},
	)
	return nil
}
