package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/ops"
	"github.com/xiangenhu/polyuhulab-sub001/internal/app"
	"github.com/xiangenhu/polyuhulab-sub001/internal/config"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// Ops HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	clientMetricsInterval = 5 * time.Second
)

// watchCmd runs the client as a long-lived process
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the client until interrupted",
	Long: `Run the client as a long-lived process.

watch keeps the statement pipeline flushing on its timer, follows live
workspace updates over the portal WebSocket, prints notifications as they
arrive, and serves /healthz, /metrics and /stats on the ops address
(HULAB_OPS_ADDR, default :9090). Stop it with Ctrl-C; shutdown drains the
pipeline before the process exits.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Get()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyLogLevel(ctx, cfg)

	client := app.New(cfg)
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	// In watch mode the notification stream is the output, so it goes to
	// stdout with timestamps rather than through renderNotifications.
	sub, cancelSub := client.Notifications().Subscribe()
	noticesDone := make(chan struct{})
	go func() {
		defer close(noticesDone)
		for n := range sub {
			fmt.Printf("%s  [%s] %s\n", n.At.Local().Format("15:04:05"), n.Level, n.Text)
		}
	}()

	// Live updates need a session; watch still runs without one so the
	// pipeline can drain statements journaled by earlier commands.
	if client.Sessions().Valid() {
		if err := client.ConnectLive(); err != nil {
			log.Warn(ctx, "live channel not connected", logger.Error(err))
		}
	} else {
		log.Warn(ctx, "not signed in; run `hulab login` to enable live updates")
	}

	// Start client metrics updater
	go startClientMetricsUpdater(ctx, client)

	// Ops HTTP mux and routes.
	mux := http.NewServeMux()
	opsServer := ops.NewServer(client)
	opsServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the ops HTTP server
	go func() {
		log.Info(ctx, "serving ops endpoints", logger.String("addr", cfg.OpsAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("ops server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	cancelSub()
	<-noticesDone

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "ops server shutdown failed", logger.Error(err))
	}
	if err := client.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop client: %w", err)
	}

	log.Info(ctx, "client stopped")
	return nil
}

// startClientMetricsUpdater starts a background goroutine that refreshes
// gauge metrics from client stats.
func startClientMetricsUpdater(ctx context.Context, client *app.Client) {
	ticker := time.NewTicker(clientMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateClientMetrics(client)
		}
	}
}

// updateClientMetrics updates gauges that only move between flushes.
func updateClientMetrics(client *app.Client) {
	// GetStats refreshes the queue gauge itself; the rest come from the
	// snapshot.
	stats := client.GetStats()

	if n, ok := stats["journalLength"].(int); ok {
		metrics.UpdateJournalSize(n)
	}
	if n, ok := stats["queueCapacity"].(int); ok {
		metrics.UpdateQueueCapacity(n)
	}
	if state, ok := stats["liveState"].(string); ok {
		metrics.UpdateWSConnected(state == "connected")
	}
}
