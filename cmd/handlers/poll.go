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
	"time"

	"github.com/spf13/cobra"

	"newsroom/internal/categorization"
	"newsroom/internal/config"
	"newsroom/internal/logger"
	"newsroom/internal/mailbox"
	"newsroom/internal/poller"
	"newsroom/internal/store"
)

const mailboxTimeout = 60 * time.Second

// NewPollCmd creates the inbox polling command
func NewPollCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll the inbox and store classified newsletter emails",
		Long: `Connect to the IMAP inbox, fetch every message not seen before, classify it
by sender and rewrite the email table. Runs until interrupted.

Examples:
  # Poll forever
  newsroom poll

  # One cycle, then exit
  newsroom poll --once`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd.Context(), once)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single poll cycle and exit")

	return cmd
}

func runPoll(ctx context.Context, once bool) error {
	if err := cfg.ValidateMailbox(); err != nil {
		return err
	}

	classifier, err := buildClassifier(cfg.Poller.RulesFile)
	if err != nil {
		return err
	}

	seen, closeSeen, err := openSeenStore(cfg.Redis)
	if err != nil {
		return err
	}
	defer closeSeen()

	dialer := mailbox.IMAPDialer{
		Addr:     cfg.Mailbox.Address(),
		Username: cfg.Mailbox.Username,
		Password: cfg.Mailbox.Password,
		Timeout:  mailboxTimeout,
	}
	table := store.NewTable(cfg.Poller.TablePath)
	p := poller.New(dialer, classifier, table, seen, poller.Options{
		Folder:   cfg.Mailbox.Folder,
		Interval: config.Duration(cfg.Poller.Interval, poller.DefaultInterval),
	})

	ctx, stop := signalContext(ctx)
	defer stop()

	if !once {
		logger.Info("Polling inbox",
			"user", logger.RedactEmail(cfg.Mailbox.Username),
			"table", table.Path())
		return p.Run(ctx)
	}

	if err := p.Load(ctx); err != nil {
		return fmt.Errorf("failed to load email table: %w", err)
	}
	defer p.Close()

	n, err := p.Cycle(ctx)
	if err != nil {
		return fmt.Errorf("poll cycle failed: %w", err)
	}
	printSummary(os.Stdout, "Poll complete",
		field{"New emails", strconv.Itoa(n)},
		field{"Stored", strconv.Itoa(len(p.Records()))},
		field{"Table", table.Path()},
	)
	return nil
}

// buildClassifier uses the rules file when given, the built-in rules otherwise,
// and warns about rules that can never match.
func buildClassifier(rulesFile string) (*categorization.Classifier, error) {
	rules := categorization.DefaultRules()
	if rulesFile != "" {
		loaded, err := categorization.LoadRules(rulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}

	classifier := categorization.NewClassifier(rules)
	for _, shadow := range classifier.Shadowed() {
		logger.Warn("Categorization rule is unreachable", "detail", shadow.String())
	}
	return classifier, nil
}

// openSeenStore returns a Redis-backed store when redis.url is set.
func openSeenStore(rc config.Redis) (store.SeenStore, func(), error) {
	if rc.URL == "" {
		return store.NewMemorySeen(), func() {}, nil
	}

	seen, err := store.NewRedisSeenFromURL(rc.URL, rc.KeyPrefix, config.Duration(rc.TTL, 0))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Using Redis for seen message ids", "prefix", rc.KeyPrefix)
	return seen, func() { _ = seen.Close() }, nil
}
