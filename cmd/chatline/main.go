package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/chatline/internal/client/cli"
	"github.com/dmitrijs2005/chatline/internal/client/client"
	"github.com/dmitrijs2005/chatline/internal/client/config"
	"github.com/dmitrijs2005/chatline/internal/filex"
	"github.com/dmitrijs2005/chatline/internal/logging"
)

// Flags are parsed by the config package from os.Args in layers
// (defaults, JSON, env, flags), so cobra leaves them alone.
var rootCmd = &cobra.Command{
	Use:                "chatline [-c config.json] [-env .env] [-b backend] [-d dsn] [-dir path] [-blob backend] [-redis url] [-w window] [-l level]",
	Short:              "Terminal chat client on a document store backend",
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE:               runREPL,
}

var migrateCmd = &cobra.Command{
	Use:                "migrate",
	Short:              "Apply document store and local database migrations, then exit",
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE:               runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func load() (*config.Config, logging.Logger, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(os.Stderr, cfg.LogLevel), nil
}

func runREPL(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := load()
	if err != nil {
		return err
	}

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("start client: %w", err)
	}
	return app.Run(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := load()
	if err != nil {
		return err
	}

	store, err := client.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	defer store.Close()

	dir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return err
	}
	db, err := client.InitDatabase(ctx, filepath.Join(dir, client.LocalDBName))
	if err != nil {
		return fmt.Errorf("local database: %w", err)
	}
	defer db.Close()

	logger.Info(ctx, "migrations applied", "backend", cfg.Backend, "dir", cfg.DataDir)
	return nil
}
