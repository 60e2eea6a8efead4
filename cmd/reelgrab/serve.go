package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"reelgrab/pkg/config"
	"reelgrab/pkg/extractor"
	"reelgrab/pkg/logger"
	"reelgrab/pkg/proxy"
	"reelgrab/pkg/server"
	"reelgrab/pkg/tracing"
	"reelgrab/pkg/ui"
)

var (
	serveAddr       string
	serveStrategies []string
	serveParser     string
	serveBrowserBin string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the reel extraction API.

Endpoints:
  GET /api/fetch-reel?url=<reel url>          resolve a reel to its video URL
  GET /api/download?url=<video>&filename=<f>  stream a video as an attachment
  GET /health                                 liveness check`,
	Example: `  reelgrab serve --addr :3000
  reelgrab serve --strategies page,embed,browser --no-delay`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :8080)")
	serveCmd.Flags().StringSliceVar(&serveStrategies, "strategies", nil, "ordered extraction strategies (thirdparty, page, embed, browser)")
	serveCmd.Flags().StringVar(&serveParser, "parser", "", "third-party response parser (regex or dom)")
	serveCmd.Flags().StringVar(&serveBrowserBin, "browser-bin", "", "path to the Chromium binary for the browser strategy")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := globalFlags(cmd)
	if serveAddr != "" {
		flags["addr"] = serveAddr
	}
	if len(serveStrategies) > 0 {
		flags["strategies"] = serveStrategies
	}
	if serveParser != "" {
		flags["parser"] = serveParser
	}
	if serveBrowserBin != "" {
		flags["browser-bin"] = serveBrowserBin
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, &cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer tp.Shutdown()

	log := logger.GetLogger()
	orch, err := extractor.Build(cfg, loadSession(cfg, log), log)
	if err != nil {
		return fmt.Errorf("failed to build extraction pipeline: %w", err)
	}

	ui.PrintInfo("Listening", cfg.Server.Addr)
	ui.PrintInfo("Strategies", strings.Join(orch.Strategies(), " → "))

	srv := server.New(cfg.Server, orch, proxy.New(cfg.Download, log), log)
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("Server stopped with error")
		return fmt.Errorf("server stopped: %w", err)
	}
	ui.PrintSuccess("Server stopped")
	return nil
}

// loadConfig loads configuration and initializes the global logger
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
