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

	"newsroom/internal/categorization"
	"newsroom/internal/config"
	"newsroom/internal/importer"
	"newsroom/internal/persistence"
	"newsroom/internal/research"
)

// NewImportCmd creates the data import command
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load emails and topic analyses into Postgres",
		Long: `Load the email table and the topic analysis documents into Postgres.
Pending schema migrations are applied first.

Subcommands:
  articles   Upsert one raw_articles row per email
  analyses   Insert one topic_analyses row per analysis document
  cleanup    Delete all imported rows`,
	}

	cmd.AddCommand(newImportArticlesCmd())
	cmd.AddCommand(newImportAnalysesCmd())
	cmd.AddCommand(newImportCleanupCmd())

	return cmd
}

func newImportArticlesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "articles [csv]",
		Short: "Upsert emails from the email table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.Poller.TablePath
			if len(args) == 1 {
				path = args[0]
			}
			return withImporter(cmd.Context(), func(ctx context.Context, im *importer.Importer) error {
				report, err := im.ImportArticlesFile(ctx, path)
				if err != nil {
					return err
				}
				printSummary(os.Stdout, "Articles imported",
					field{"Rows", strconv.Itoa(report.Read)},
					field{"Skipped", strconv.Itoa(report.Skipped)},
					field{"Upserted", strconv.Itoa(report.Upserted)},
				)
				return nil
			})
		},
	}
}

func newImportAnalysesCmd() *cobra.Command {
	var researchFile string

	cmd := &cobra.Command{
		Use:   "analyses [dir]",
		Short: "Insert topic analysis documents",
		Long: `Insert one topic_analyses row per analysis document, linked to the stored
articles of the same topic. Documents without an analysis and topics
without articles are skipped. With
--research, the URLs found by 'newsroom research' are attached to each row.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cfg.Analysis.Directory
			if len(args) == 1 {
				dir = args[0]
			}

			var urls []string
			if researchFile != "" {
				results, err := research.LoadResults(researchFile)
				if err != nil {
					return err
				}
				urls = research.URLs(results)
			}

			return withImporter(cmd.Context(), func(ctx context.Context, im *importer.Importer) error {
				report, err := im.ImportAnalyses(ctx, dir, urls)
				if err != nil {
					return err
				}
				skipped := "-"
				if len(report.Skipped) > 0 {
					skipped = strings.Join(report.Skipped, ", ")
				}
				printSummary(os.Stdout, "Analyses imported",
					field{"Files", strconv.Itoa(report.Files)},
					field{"Incomplete", strconv.Itoa(len(report.Incomplete))},
					field{"Inserted", strconv.Itoa(report.Inserted)},
					field{"Skipped", skipped},
					field{"URLs", strconv.Itoa(len(urls))},
				)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&researchFile, "research", "", "research results file whose URLs are attached")

	return cmd
}

func newImportCleanupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete all imported analyses and articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("cleanup deletes every imported row; re-run with --force to confirm")
			}
			return withImporter(cmd.Context(), func(ctx context.Context, im *importer.Importer) error {
				res, err := im.Cleanup(ctx)
				if err != nil {
					return err
				}
				printSummary(os.Stdout, "Tables cleared",
					field{"Analyses", strconv.FormatInt(res.Analyses, 10)},
					field{"Articles", strconv.FormatInt(res.Articles, 10)},
				)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm deletion")

	return cmd
}

// withImporter opens the database, applies migrations and runs fn.
func withImporter(ctx context.Context, fn func(context.Context, *importer.Importer) error) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signalContext(ctx)
	defer stop()

	if _, err := persistence.NewMigrationManager(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	var opts []importer.Option
	if cfg.Poller.RulesFile != "" {
		rules, err := categorization.LoadRules(cfg.Poller.RulesFile)
		if err != nil {
			return err
		}
		opts = append(opts, importer.WithCategories(categorization.GetCategoryNames(rules)))
	}
	return fn(ctx, importer.New(db, opts...))
}

func openDatabase() (*persistence.PostgresDB, error) {
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, err
	}
	db, err := persistence.Open(cfg.Database.URL, config.Duration(cfg.Database.Timeout, persistence.DefaultPingTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
