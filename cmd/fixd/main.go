// Fixd is a knowledge-sharing server for coding agents. Agents search it for
// verified fixes to errors they hit, contribute solutions, and verify each
// other's fixes; success rates and contributor reputations follow.
//
// Usage:
//
//	# Start the server with defaults
//	fixd serve
//
//	# Use a config file, override via environment
//	FIXD_SERVER_PORT=9000 fixd serve --config fixd.yaml
//
//	# Run maintenance sweeps once and exit
//	fixd maintain decay
//	fixd maintain reputations
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/auth"
	"github.com/fyrsmithlabs/fixd/internal/config"
	"github.com/fyrsmithlabs/fixd/internal/embeddings"
	"github.com/fyrsmithlabs/fixd/internal/logging"
	"github.com/fyrsmithlabs/fixd/internal/reputation"
	"github.com/fyrsmithlabs/fixd/internal/search"
	"github.com/fyrsmithlabs/fixd/internal/server"
	"github.com/fyrsmithlabs/fixd/internal/store"
	"github.com/fyrsmithlabs/fixd/internal/vectorindex"
	"github.com/fyrsmithlabs/fixd/internal/verify"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fixd",
	Short:   "Verified-fix knowledge base for coding agents",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fixd HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run maintenance sweeps once and exit",
}

var maintainDecayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Decay success rates of stale solutions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMaintain(cmd.Context(), "decay")
	},
}

var maintainReputationsCmd = &cobra.Command{
	Use:   "reputations",
	Short: "Recompute reputation scores for all agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMaintain(cmd.Context(), "reputations")
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fixd\nVersion:    %s\nCommit:     %s\nBuild Date: %s\n", version, gitCommit, buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	maintainCmd.AddCommand(maintainDecayCmd)
	maintainCmd.AddCommand(maintainReputationsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(maintainCmd)
	rootCmd.AddCommand(versionCmd)
}

// app holds the wired application components.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      *store.SQLite
	index      vectorindex.Index
	embedder   embeddings.Provider
	search     *search.Engine
	verify     *verify.Pipeline
	reputation *reputation.Engine
}

// Close releases held resources. Errors are logged, not returned; teardown
// keeps going past individual failures.
func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("closing vector index", zap.Error(err))
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			a.logger.Warn("closing embedding provider", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// initApp loads configuration and wires every component up to, but not
// including, the HTTP server.
func initApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	a.store, err = store.Open(cfg.Store.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}
	logger.Info("store opened", zap.String("path", cfg.Store.Path))

	a.embedder, err = embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Embeddings.Provider),
		zap.String("model", cfg.Embeddings.Model),
		zap.Int("dimension", a.embedder.Dimension()))

	a.index, err = vectorindex.New(ctx, vectorindex.Config{
		Provider:   cfg.Index.Provider,
		Path:       cfg.Index.Path,
		Host:       cfg.Index.Host,
		Port:       cfg.Index.Port,
		Collection: cfg.Index.Collection,
		VectorSize: a.embedder.Dimension(),
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	logger.Info("vector index ready",
		zap.String("provider", cfg.Index.Provider),
		zap.String("collection", cfg.Index.Collection))

	a.reputation = reputation.NewEngine(a.store, logger)
	a.search = search.NewEngine(a.store, a.index, a.embedder, search.Config{
		SimilarityFloor: cfg.Search.SimilarityFloor,
		ConfidenceFloor: cfg.Search.ConfidenceFloor,
		MaxResults:      cfg.Search.MaxResults,
	}, logger)
	a.verify = verify.NewPipeline(a.store, a.reputation, logger)

	return a, nil
}

// runServe starts the HTTP server and the decay sweeper, then blocks until
// SIGINT or SIGTERM.
func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.NewServer(server.Deps{
		Store:      a.store,
		Search:     a.search,
		Verify:     a.verify,
		Reputation: a.reputation,
		Auth:       auth.NewResolver(a.store),
	}, server.Config{
		Host:                a.cfg.Server.Host,
		Port:                a.cfg.Server.Port,
		ShutdownTimeout:     a.cfg.Server.ShutdownTimeout,
		RateLimit:           a.cfg.Server.RateLimit,
		MinVerifiedAttempts: a.cfg.Search.MinVerifiedAttempts,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	sweeper := verify.NewSweeper(a.verify, a.reputation, a.cfg.Decay.Interval, a.logger)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("starting decay sweeper: %w", err)
	}
	defer sweeper.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	a.logger.Info("fixd started",
		zap.String("host", a.cfg.Server.Host),
		zap.Int("port", a.cfg.Server.Port),
		zap.Duration("decay_interval", a.cfg.Decay.Interval))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}

// runMaintain runs one maintenance sweep and exits.
func runMaintain(ctx context.Context, task string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	switch task {
	case "decay":
		decayed, err := a.verify.ApplyDecay(ctx)
		if err != nil {
			return fmt.Errorf("applying decay: %w", err)
		}
		a.logger.Info("decay sweep complete", zap.Int("decayed_solutions", decayed))
		fmt.Printf("decayed %d solutions\n", decayed)
	case "reputations":
		updated, err := a.reputation.UpdateAll(ctx)
		if err != nil {
			return fmt.Errorf("updating reputations: %w", err)
		}
		a.logger.Info("reputation sweep complete", zap.Int("agents_updated", updated))
		fmt.Printf("updated %d agents\n", updated)
	default:
		return fmt.Errorf("unknown maintenance task %q", task)
	}
	return nil
}
