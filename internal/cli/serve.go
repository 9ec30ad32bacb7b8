package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banchi-geo/banchi/internal/config"
	"github.com/banchi-geo/banchi/internal/server"
	"github.com/banchi-geo/banchi/pkg/geocoder"
)

func RunServe(cmd *cobra.Command, args []string) error {
	cfgDir, _ := cmd.Flags().GetString("config")
	if cfgDir == "" {
		cfgDir = "."
	}
	cfg, err := config.LoadConfig(cfgDir)
	if err != nil {
		return err
	}

	level := cfg.SlogLevel()
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// The --db-dir flag beats the config file.
	dbDir, _ := cmd.Flags().GetString("db-dir")
	if dbDir == "" {
		dbDir = cfg.DBDir
	}
	dir, err := geocoder.DBDir(dbDir)
	if err != nil {
		return err
	}
	tree, err := geocoder.Open(dir)
	if err != nil {
		return fmt.Errorf("no dictionary in %s (install one or set %s): %w",
			dir, geocoder.EnvDBDir, err)
	}
	defer tree.Close()

	srv := server.NewServer(tree, server.Options{
		Addr:         cfg.Addr(),
		AuthToken:    cfg.AuthToken,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Run() }()

	select {
	case err := <-errChan:
		return err
	case sig := <-shutdownChan:
		slog.Info("Shutting down", "signal", sig.String())
		srv.Shutdown()
		return <-errChan
	}
}
