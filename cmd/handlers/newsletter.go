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
	"strings"

	"github.com/spf13/cobra"

	"newsroom/internal/logger"
	"newsroom/internal/publish"
	"newsroom/internal/services"
)

// NewNewsletterCmd creates the draft/evaluate/refine command
func NewNewsletterCmd() *cobra.Command {
	var (
		dir        string
		categories []string
		iterations int
		output     string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "newsletter",
		Short: "Draft, score and refine a newsletter from the topic analyses",
		Long: `Load the analysis of each requested topic, draft a newsletter with one section
per topic, score it, and refine it for a number of iterations. The best
scoring draft is written to the output file, and to S3 when output.s3.bucket
is configured.

Examples:
  # Use configured topics and directory
  newsroom newsletter

  # Two topics, five refinement rounds
  newsroom newsletter --categories tech,finance --iterations 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.NewsletterRequest{
				Dir:        dir,
				Categories: categories,
				OutputPath: output,
			}
			if cmd.Flags().Changed("iterations") {
				req.Iterations = &iterations
			}
			return runNewsletter(cmd.Context(), req, quiet)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory of topic analysis documents (default from config)")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "topics to include (default from config)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "refinement rounds (default from config: 3)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default from config)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the summary, not the newsletter text")

	return cmd
}

func runNewsletter(ctx context.Context, req services.NewsletterRequest, quiet bool) error {
	opts := newsletterOptions(ctx)

	ctx, stop := signalContext(ctx)
	defer stop()

	result, err := services.NewNewsletterService(cfg, opts...).Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("newsletter generation failed: %w", err)
	}

	if !quiet {
		fmt.Println(result.Newsletter)
		fmt.Println()
	}
	printSummary(os.Stdout, "Newsletter complete",
		field{"Run", result.RunID},
		field{"Score", strconv.FormatFloat(result.Score, 'f', 1, 64)},
		field{"Topics", strings.Join(result.Categories, ", ")},
		field{"Iterations", strconv.Itoa(result.Iterations)},
	)
	return nil
}

// newsletterOptions adds the S3 publisher when a bucket is configured.
func newsletterOptions(ctx context.Context) []services.NewsletterOption {
	if cfg.Output.S3.Bucket == "" {
		return nil
	}
	s3pub, err := publish.NewS3Publisher(ctx, publish.S3Config{
		Bucket: cfg.Output.S3.Bucket,
		Prefix: cfg.Output.S3.Prefix,
		Region: cfg.Output.S3.Region,
	})
	if err != nil {
		logger.Warn("S3 publishing disabled", "error", err.Error())
		return nil
	}
	return []services.NewsletterOption{services.WithPublishers(s3pub)}
}
