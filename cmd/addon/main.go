package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/ogero/stremio-speculative/internal"
	"github.com/ogero/stremio-speculative/internal/common"
	"github.com/ogero/stremio-speculative/internal/config"
	"github.com/ogero/stremio-speculative/internal/loki"
	"github.com/ogero/stremio-speculative/pkg/yts"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceVersion = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "addon",
	Short: "Speculative stream addon",
	Long:  "Serves a Stremio addon that resolves streams and catalogs from YTS torrent searches",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(serve())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the addon over HTTP",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(serve())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() int {

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.Load()
	if err != nil {
		common.Log.Error("Failed to config.Load", "err", err)
		return 1
	}

	loggerShutdown, err := common.InitLogger(cfg.ServiceName, serviceVersion, cfg.ServiceEnvironment, cfg.OTelExporterEndpoint)
	if err != nil {
		common.Log.Error("Failed to common.InitLogger", "err", err)
		return 1
	}
	defer func() {
		_ = loggerShutdown(context.Background())
	}()

	instrumentationShutdown, err := common.InitInstrumentation(cfg.ServiceName, serviceVersion, cfg.ServiceEnvironment, cfg.OTelExporterEndpoint)
	if err != nil {
		common.Log.Error("Failed to common.InitInstrumentation", "err", err)
		return 1
	}
	defer instrumentationShutdown(context.Background())

	var lokiClient loki.Loki
	if cfg.LokiHost != "" {
		lokiClient = loki.NewLoki(cfg.LokiHost, cfg.ServiceName)
	}

	diagnostics, err := internal.NewDiagnosticsService(cfg.DiagnosticsChannel, lokiClient)
	if err != nil {
		common.Log.Error("Failed to internal.NewDiagnosticsService", "err", err)
		return 1
	}

	pollCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()
	go diagnostics.StartPollingStats(pollCtx, cfg.StatsPollInterval)

	searcher := internal.NewTorrentSearcher(yts.NewYTS(cfg.IndexBaseURL), diagnostics)
	stremioService := internal.NewStremioService(searcher, cfg.StreamServerURL)
	app := internal.NewApp(stremioService, cfg.AddonHost, diagnostics)

	// Listen
	srv := &http.Server{
		Addr:    cfg.ServerListenAddr,
		Handler: otelhttp.NewHandler(app.Router(), "addon"),
	}
	go func() {
		common.Log.Info("Listening", "addr", cfg.ServerListenAddr)
		common.Log.Info("Install at " + app.InstallURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.Log.Error("Failed to http.Server.ListenAndServe", "err", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	stopPolling()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		common.Log.Error("Failed to http.Server.Shutdown", "err", err)
	}

	if err := diagnostics.Shutdown(ctx); err != nil {
		common.Log.Error("Failed to internal.DiagnosticsService.Shutdown", "err", err)
	}

	common.Log.Info("Bye!")
	return 0
}
