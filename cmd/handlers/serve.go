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
	"time"

	"github.com/spf13/cobra"

	"newsroom/internal/logger"
	"newsroom/internal/server"
	"newsroom/internal/services"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP newsletter entrypoint",
		Long: `Start an HTTP server that runs newsletter generation on request.

Endpoints:
  POST /api/newsletter   {category_dir, categories, openai_key, anthropic_key}
  GET  /health           liveness, plus a database check when configured
  GET  /metrics          Prometheus metrics

Examples:
  # Start server on the configured port (default 8080)
  newsroom serve

  # Start on custom port
  newsroom serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	opts := newsletterOptions(ctx)

	var pinger server.Pinger
	if cfg.Database.URL != "" {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		pinger = db
	}

	srv := server.New(services.NewNewsletterService(cfg, opts...), pinger, serverCfg, server.NewsletterDefaults{
		Dir:        cfg.Analysis.Directory,
		Categories: cfg.Analysis.Categories,
	})

	ctx, stop := signalContext(ctx)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		logger.Info("Server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", err)
			return err
		}
	}

	return nil
}
