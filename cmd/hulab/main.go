// Command hulab is the command line client for the HU Lab research portal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiangenhu/polyuhulab-sub001/internal/app"
	"github.com/xiangenhu/polyuhulab-sub001/internal/config"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

// Build information, set via -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
)

// Operation timeout constants.
const (
	defaultOpTimeout = 30 * time.Second
	shutdownTimeout  = 30 * time.Second
)

var (
	// Global flags
	verbose   bool
	opTimeout time.Duration
	jsonOut   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hulab",
	Short: "Headless client for the HU Lab research portal",
	Long: `hulab is the command line client for the HU Lab research portal.

It signs in to the portal, browses research projects, manages tasks and
documents, and records every interaction as an xAPI statement. Statements
are journaled locally and delivered in batches, so activity tracked while
the portal is unreachable still arrives once it comes back.

Configuration comes from HULAB_* environment variables or a YAML file
named by HULAB_CONFIG, e.g. HULAB_BASE_URL=https://lab.example.edu.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		if verbose {
			_ = logger.SetLevelString("debug")
		}
		return nil
	},
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hulab %s (%s)\n", version, commit)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&opTimeout, "timeout", defaultOpTimeout, "Timeout for one-shot operations")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print results as JSON")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withClient loads configuration, starts the portal client, runs fn under
// the operation timeout, and stops the client. Stopping drains the
// statement pipeline, so tracked statements leave the machine before the
// process exits.
func withClient(fn func(ctx context.Context, client *app.Client) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyLogLevel(ctx, cfg)

	client := app.New(cfg)
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	stopNotices := renderNotifications(client)

	opCtx := ctx
	if opTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, opTimeout)
		defer cancel()
	}

	runErr := fn(opCtx, client)

	stopNotices()

	// Stop on a fresh context: the final flush must survive an expired
	// operation timeout or an interrupted signal context.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := client.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// applyLogLevel applies the configured log level unless --verbose already
// forced debug.
func applyLogLevel(ctx context.Context, cfg *config.Config) {
	if verbose {
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
}

// renderNotifications prints client notifications to stderr while a
// command runs, keeping stdout machine-readable.
func renderNotifications(client *app.Client) func() {
	sub, cancel := client.Notifications().Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := range sub {
			fmt.Fprintf(os.Stderr, "• %s\n", n.Text)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
