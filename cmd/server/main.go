// Command server runs linkbio and its operator tools.
//
//	server serve                      HTTP server
//	server migrate                    apply schema migrations and exit
//	server import <handle> <url>      merge an import into a profile over the API
//	server links add|rm|move          edit a profile's links over the API
//
// Server settings come from LINKBIO_* environment variables (see
// internal/config). The operator commands talk to a running server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/config"
	sqliteRepo "github.com/sakif/linkbio/internal/repository/sqlite"
	"github.com/sakif/linkbio/internal/server"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "server",
		Short:         "linkbio profile server and operator tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())
	addOperatorCommands(root)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and builds the logger from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

// ensureDBDir creates the directory holding the database file.
func ensureDBDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := ensureDBDir(cfg.DBPath); err != nil {
				return err
			}

			providers, err := buildProviders(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, providers, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return srv.Start()
		},
	}
}

// buildProviders returns the external sign-in providers that have
// credentials configured.
func buildProviders(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]auth.Provider, error) {
	var providers []auth.Provider
	if cfg.GitHubEnabled() {
		providers = append(providers, auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL))
		logger.Info("sign-in provider enabled", slog.String("provider", "github"))
	}
	if cfg.GoogleEnabled() {
		g, err := auth.NewGoogleProvider(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
		if err != nil {
			return nil, fmt.Errorf("configuring google sign-in: %w", err)
		}
		providers = append(providers, g)
		logger.Info("sign-in provider enabled", slog.String("provider", "google"))
	}
	return providers, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := ensureDBDir(cfg.DBPath); err != nil {
				return err
			}

			// New migrates on open.
			db, err := sqliteRepo.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := db.Version(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("schema up to date",
				slog.String("database", cfg.DBPath),
				slog.Int("version", int(version)),
			)
			return nil
		},
	}
}
