package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/esdesk/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		stop()
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "esdesk",
		Usage: "Local console for Elasticsearch clusters",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory holding the database and encryption key",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			endpointCommand(),
			consoleCommand(),
			indicesCommand(),
			sqlCommand(),
			probeCommand(),
			migrateCommand(),
		},
	}
}

// withApp loads configuration, bootstraps storage and runs fn with the
// wired application.
func withApp(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dir := cmd.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if cmd.IsSet("listen") {
		cfg.ListenAddr = cmd.String("listen")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	a, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
