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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newsroom/internal/config"
	"newsroom/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newsroom",
		Short: "Newsroom turns newsletter emails into one scored, synthesized newsletter.",
		Long: `Newsroom polls an inbox for newsletter emails, sorts them into topics,
keeps a running analysis per topic and drafts a combined newsletter that a
second model scores and the first model refines.

Typical flow:
  newsroom poll                 # ingest emails into the email table
  newsroom synthesize --watch   # keep per-topic analyses current
  newsroom newsletter           # draft, score and refine the newsletter

Utilities:
  newsroom research             # find article URLs for keywords
  newsroom import ...           # load emails and analyses into Postgres
  newsroom serve                # HTTP entrypoint for newsletter runs`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.newsroom.yaml or $HOME/.newsroom.yaml)")

	rootCmd.AddCommand(NewPollCmd())
	rootCmd.AddCommand(NewSynthesizeCmd())
	rootCmd.AddCommand(NewNewsletterCmd())
	rootCmd.AddCommand(NewResearchCmd())
	rootCmd.AddCommand(NewImportCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads configuration and reconfigures the logger from it.
func initConfig() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	cfg = loaded

	level := cfg.Logging.Level
	if cfg.App.Debug {
		level = "debug"
	}
	logger.Configure(logger.Options{Level: level, Format: cfg.Logging.Format})

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
