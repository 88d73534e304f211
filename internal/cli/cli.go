// Package cli implements the datagen command line tool. It runs the same
// generation pipeline as the HTTP server but writes to a file or stdout.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/synthgen/internal/ai"
	"github.com/kiranshivaraju/synthgen/internal/cache"
	"github.com/kiranshivaraju/synthgen/internal/config"
	"github.com/kiranshivaraju/synthgen/internal/generate"
	"github.com/kiranshivaraju/synthgen/internal/store"
	"github.com/kiranshivaraju/synthgen/pkg/models"
)

// KeyStore is where keys create persists new API keys.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
}

// Env holds the collaborators commands use. Tests replace them.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	LoadConfig   func() (*config.Config, error)
	NewProvider  func(cfg config.AIConfig) (models.TextGenerator, error)
	OpenCache    func(ctx context.Context, cfg config.RedisConfig) (generate.Store, func(), error)
	OpenKeyStore func(ctx context.Context, cfg config.DatabaseConfig) (KeyStore, func(), error)
	Now          func() time.Time
}

// DefaultEnv wires the real config loader, providers, Redis and Postgres.
func DefaultEnv() *Env {
	return &Env{
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		LoadConfig:   config.Load,
		NewProvider:  ai.NewProvider,
		OpenCache:    openRedis,
		OpenKeyStore: openPostgres,
		Now:          time.Now,
	}
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (generate.Store, func(), error) {
	c, err := cache.NewRedisCache(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := c.Ping(ctx); err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, func() { c.Close() }, nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (KeyStore, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required to manage API keys")
	}
	pool, err := store.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := store.RunMigrations(cfg.URL); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return store.NewPostgresStore(pool), pool.Close, nil
}

// NewRootCmd creates and returns the root command for the CLI.
func NewRootCmd(env *Env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "datagen",
		Short:         "Generate synthetic tabular datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(env.Stdout)
	rootCmd.SetErr(env.Stderr)

	registerGenerateCmd(rootCmd, env)
	registerKeysCmd(rootCmd, env)

	return rootCmd
}

// Run executes the CLI with args, extracted from main for testability.
func Run(ctx context.Context, env *Env, args []string) error {
	cmd := NewRootCmd(env)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
