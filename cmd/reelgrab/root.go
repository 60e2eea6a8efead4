package main

import (
	"fmt"
	"os"
	"runtime"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"
	"reelgrab/pkg/logger"
	"reelgrab/pkg/ui"
)

var (
	// Version information, set with -ldflags
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFormat  string
	noDelay    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reelgrab",
	Short: "Resolve Instagram reels to their video file",
	Long: `reelgrab turns a public Instagram reel or post URL into a direct video URL.

It tries a chain of extraction strategies in order until one succeeds:
  - thirdparty  delegate to a downloader site
  - page        scrape the post page
  - embed       scrape the embed page
  - browser     load the post in headless Chromium and watch the network

Run 'reelgrab serve' for the HTTP API or 'reelgrab fetch <url>' for a one-off lookup.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Version = version
		switch cmd.Name() {
		case "version", "help", "completion":
		default:
			if !jsonOutput {
				ui.PrintLogo()
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cc.Init(&cc.Config{
		RootCmd:       rootCmd,
		Headings:      cc.HiCyan + cc.Bold + cc.Underline,
		Commands:      cc.HiYellow + cc.Bold,
		Example:       cc.Italic,
		ExecName:      cc.Bold,
		Flags:         cc.Bold,
		FlagsDataType: cc.Italic + cc.HiBlue,
	})

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./reelgrab.yaml or ~/.config/reelgrab/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&noDelay, "no-delay", false, "skip the randomized delay before each strategy")

	rootCmd.SetVersionTemplate(`reelgrab {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	// Commands return errors to Execute, which prints them once and exits
	// after their deferred cleanup has run.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

// globalFlags collects the persistent flags the user actually set
func globalFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("log-level") {
		flags["log-level"] = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		flags["log-format"] = logFormat
	}
	if noDelay {
		flags["no-delay"] = true
	}
	return flags
}
