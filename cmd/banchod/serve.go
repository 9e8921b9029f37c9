package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bancho-go/bancho/internal/config"
	"github.com/bancho-go/bancho/pkg/bancho"
	"github.com/bancho-go/bancho/pkg/store"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		port       int
		host       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bancho server",
		Long: `Run the bancho server.

Without a database_url in the config the server runs on an in-memory
store, which is only useful for development.

Examples:
  banchod serve
  banchod serve --config=/etc/bancho.json
  banchod serve --port=8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, host, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.ConfigFileName, "Path to the configuration file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from bancho.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from bancho.json)")

	return cmd
}

func runServe(configPath, host string, port int) error {
	if env := os.Getenv("BANCHO_CONFIG"); env != "" && configPath == config.ConfigFileName {
		configPath = env
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}
	if host != "" {
		cfg.Host = host
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.DatabaseURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		pg, err := store.Connect(dialCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pg.Close()
		st = pg
	} else {
		logger.Warn("no database_url configured, using in-memory store")
		st = store.NewMemory()
	}

	srv := bancho.New(cfg, st, logger)
	go srv.Run(ctx)

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv.Router(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.Addr())
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
