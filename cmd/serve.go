package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/mcqgen/internal/logger"
	"github.com/abhisek/mcqgen/internal/metrics"
	"github.com/abhisek/mcqgen/internal/server"
	"github.com/abhisek/mcqgen/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the generation API:

  POST /api/generate-mcq-stream   questions as server-sent events
  POST /api/generate-mcq          the whole question set as JSON
  GET  /healthz
  GET  /metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "Listen host (overrides server.host)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var st *store.Store
	if !cfg.DB.Disabled {
		dbPath, err := resolveDBPath(cmd, cfg)
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
		st, err = store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		log.Info("Recording sessions", logger.String("db", dbPath))
	}

	srv := server.New(server.Options{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(),
		Store:   st,
		Version: version,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		// Shutdown gets a fresh context; gctx is already done.
		return srv.Shutdown(context.Background())
	})
	return g.Wait()
}
