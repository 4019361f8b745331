package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/nameFly-top/vscode-codeBase/internal/cache"
	"github.com/nameFly-top/vscode-codeBase/internal/config"
	"github.com/nameFly-top/vscode-codeBase/internal/mcpserver"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	fs := pflag.NewFlagSet("codebase-mcp", pflag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	showVersion := fs.Bool("version", false, "print version and exit")
	config.BindFlags(fs)
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("Codebase MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", cache.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", cache.DriverName)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout is reserved for the MCP protocol.
	level, lerr := zerolog.ParseLevel(cfg.LogLevel)
	if lerr != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	log.Info().
		Str("version", version).
		Str("buildMode", cache.BuildMode).
		Str("driver", cache.DriverName).
		Msg("codebase-mcp starting")

	server := mcpserver.NewServer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Info().Msg("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	case err := <-errChan:
		if err != nil {
			log.Fatal().Err(err).Msg("server error")
		}
	}

	log.Info().Msg("server stopped")
}
