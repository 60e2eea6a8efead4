package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"reelgrab/internal/downloader"
	"reelgrab/pkg/errors"
	"reelgrab/pkg/extractor"
	"reelgrab/pkg/instagram"
	"reelgrab/pkg/logger"
	"reelgrab/pkg/proxy"
	"reelgrab/pkg/tracing"
	"reelgrab/pkg/ui"
)

var (
	jsonOutput      bool
	fetchOutput     string
	fetchStrategies []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <reel url>",
	Short: "Resolve a single reel and optionally save the video",
	Example: `  reelgrab fetch https://www.instagram.com/reel/Cxyz123/
  reelgrab fetch --json https://www.instagram.com/p/Cxyz123/
  reelgrab fetch -o videos/ https://www.instagram.com/reel/Cxyz123/`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "save the video to this file or directory")
	fetchCmd.Flags().StringSliceVar(&fetchStrategies, "strategies", nil, "ordered extraction strategies (thirdparty, page, embed, browser)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	flags := globalFlags(cmd)
	if len(fetchStrategies) > 0 {
		flags["strategies"] = fetchStrategies
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

	raw := strings.TrimSpace(args[0])
	ref, err := instagram.ParseReelURL(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %s", errors.PublicMessage(err))
	}

	if !jsonOutput {
		ui.PrintInfo("Shortcode", ref.Shortcode)
		ui.PrintHighlight("[RESOLVING VIDEO]")
	}

	result, err := orch.Extract(ctx, ref)
	if err != nil {
		return fmt.Errorf("extraction failed: %s", errors.PublicMessage(err))
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		ui.PrintInfo("Title", result.Title)
		ui.PrintInfo("Video", result.VideoURL)
		ui.PrintInfo("Thumbnail", result.ThumbnailOrEmpty())
	}

	if fetchOutput == "" {
		return nil
	}

	path := outputPath(fetchOutput, ref.Shortcode)
	saver := downloader.NewSaver(proxy.New(cfg.Download, log), nil, log)
	var progress *ui.DownloadProgress
	if !jsonOutput {
		progress = ui.NewDownloadProgress(filepath.Base(path))
		saver.OnProgress(progress.Update)
	}

	res := saver.Save(ctx, downloader.Job{VideoURL: result.VideoURL, Path: path})
	if progress != nil {
		progress.Done()
	}
	if res.Error != nil {
		return fmt.Errorf("download failed: %w", res.Error)
	}
	if !jsonOutput {
		ui.PrintSuccess(fmt.Sprintf("Saved %s (%s in %s)", path, ui.FormatBytes(res.Bytes), res.Duration.Round(time.Millisecond)))
	}
	return nil
}

// outputPath places <shortcode>.mp4 inside out when out names a directory
func outputPath(out, shortcode string) string {
	if strings.HasSuffix(out, "/") || strings.HasSuffix(out, string(filepath.Separator)) {
		return filepath.Join(out, shortcode+".mp4")
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, shortcode+".mp4")
	}
	return out
}
