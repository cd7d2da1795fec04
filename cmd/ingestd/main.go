package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/you/crossfeed/internal/bus"
	"github.com/you/crossfeed/internal/config"
	"github.com/you/crossfeed/internal/core"
	"github.com/you/crossfeed/internal/httpapi"
	"github.com/you/crossfeed/internal/ingestws"
	"github.com/you/crossfeed/internal/rawlog"
	"github.com/you/crossfeed/internal/router"
	"github.com/you/crossfeed/internal/tiktok"
	"github.com/you/crossfeed/internal/twitch"
	"github.com/you/crossfeed/internal/youtube"
)

// Populated through -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = ""
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		versionFlag  bool
		configPath   string
		httpAddr     string
		ingestAddr   string
		rawPath      string
		corsOrigins  string
		rateRPS      int
		rateBurst    int
		discoveryURL string
		watchConfig  bool
	)

	flag.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	flag.StringVar(&configPath, "config", envOr("CROSSFEED_CONFIG", "config.yaml"), "Path to YAML configuration file")
	flag.StringVar(&httpAddr, "http-addr", "", "Status API address (overrides the http section)")
	flag.StringVar(&ingestAddr, "ingest-addr", envOr("CROSSFEED_INGEST_ADDR", ":8710"), "Websocket ingest listener address")
	flag.StringVar(&rawPath, "raw-sqlite", "", "Raw payload archive path (overrides logging.rawLogPath)")
	flag.StringVar(&corsOrigins, "http-cors-origins", "", "Comma-separated list of allowed CORS origins")
	flag.IntVar(&rateRPS, "http-rate-rps", 20, "Maximum HTTP requests per second per client")
	flag.IntVar(&rateBurst, "http-rate-burst", 40, "Burst size for HTTP rate limiter")
	flag.StringVar(&discoveryURL, "youtube-discovery-url", "", "Endpoint returning a JSON array of live stream IDs")
	flag.BoolVar(&watchConfig, "watch-config", true, "Log an advisory when the config file changes on disk")
	flag.Parse()

	if versionFlag {
		fmt.Printf("ingestd version: %s (commit %s, built %s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	raw, err := loadRawConfig(configPath)
	if err != nil {
		log.Fatalf("ingestd: read config: %v", err)
	}
	cfg := config.Normalize(raw)

	result := config.Validate(cfg, raw)
	for _, w := range result.Warnings {
		slog.Warn("config: " + w)
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, "config: "+e)
		}
		os.Exit(1)
	}

	setLogLevel(cfg.Logging.Level)

	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { overrides[f.Name] = true })

	if !overrides["http-addr"] {
		httpAddr = fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	}
	if !overrides["raw-sqlite"] {
		rawPath = cfg.Logging.RawLogPath
	}
	if strings.TrimSpace(rawPath) == "" {
		rawPath = "raw_events.db"
	}
	if !overrides["http-cors-origins"] {
		corsOrigins = cfg.API.CORSOrigins
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := bus.New()

	var store *rawlog.Store
	if cfg.Logging.DataLoggingEnabled {
		store, err = rawlog.Open(rawPath)
		if err != nil {
			log.Fatalf("ingestd: open raw archive: %v", err)
		}
		defer store.Close()
		slog.Info("raw payload archive enabled", "path", rawPath)
	}

	build := httpapi.BuildInfo{Version: version, Revision: commit}
	if buildTime != "" {
		if t, err := time.Parse(time.RFC3339, buildTime); err == nil {
			build.BuiltAt = t
		}
	}

	api := httpapi.New(httpapi.Options{
		Addr:         httpAddr,
		Build:        build,
		Config:       cfg,
		Raw:          store,
		RateLimitRPS: rateRPS,
		Burst:        rateBurst,
		CORSOrigins:  splitOrigins(corsOrigins),
	})
	registry := api.Registerer().Registry()

	var (
		archive rawlog.Writer
		async   *rawlog.Async
	)
	if store != nil {
		writeErrors := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crossfeed",
			Name:      "rawlog_write_errors_total",
			Help:      "Archive writes that failed",
		})
		dropped := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crossfeed",
			Name:      "rawlog_dropped_total",
			Help:      "Payloads dropped because the archive queue was full",
		})
		registry.MustRegister(writeErrors, dropped)
		async = rawlog.NewAsync(store, rawlog.AsyncOptions{
			WriteErrors: writeErrors,
			Dropped:     dropped,
		})
		archive = async
	}

	deps := &router.Deps{
		Config:  cfg,
		Factory: core.NewFactory(uuid.NewString, router.NowString),
		Emit:    eventBus.Publish,
		Raw:     archive,
		Errors:  router.SlogErrorHandler{},
		Metrics: router.NewMetrics(registry),
	}

	var (
		tkRouter *tiktok.Router
		twRouter *twitch.Router
		ytRouter *youtube.Router
	)
	if cfg.TikTok.Enabled {
		tkRouter = tiktok.New(deps)
		slog.Info("tiktok router enabled", "username", cfg.TikTok.Username)
	}
	if cfg.Twitch.Enabled {
		twRouter = twitch.New(deps)
		slog.Info("twitch router enabled", "channel", cfg.Twitch.Channel)
	}
	if cfg.YouTube.Enabled {
		ytRouter = youtube.New(deps)
		slog.Info("youtube router enabled", "username", cfg.YouTube.Username)
	}
	if tkRouter == nil && twRouter == nil && ytRouter == nil {
		log.Fatal("ingestd: no platform enabled in configuration")
	}

	var detector *youtube.Detector
	if ytRouter != nil && discoveryURL != "" {
		detector = youtube.NewDetector(ytRouter, httpDiscovery(discoveryURL), passiveConnector{}, youtube.DetectorOptions{
			PollInterval:      time.Duration(cfg.Intervals.StreamPollingInterval) * time.Second,
			FullCheckInterval: time.Duration(cfg.Intervals.FullCheckInterval) * time.Second,
			MaxStreams:        cfg.ConnectionLimits.MaxStreams,
		})
		detector.Start(ctx)
		slog.Info("stream detector started", "url", discoveryURL,
			"maxStreams", cfg.ConnectionLimits.MaxStreams)
	}

	// Debug tap on the canonical bus. Downstream consumers subscribe the
	// same way.
	go func() {
		for ev := range eventBus.Subscribe("debuglog", 128) {
			slog.Debug("event emitted", "type", ev.Type, "platform", ev.Platform)
		}
	}()

	dispatcher := &ingestws.Dispatcher{TikTok: tkRouter, Twitch: twRouter, YouTube: ytRouter}
	ingestSrv := &http.Server{
		Addr:              ingestAddr,
		Handler:           ingestws.Handler(dispatcher),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("ingest listener ready", "addr", ingestAddr)
		if err := ingestSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ingest listener failed", "err", err)
			cancel()
		}
	}()

	go func() {
		if err := api.Start(); err != nil {
			slog.Error("http api failed", "err", err)
			cancel()
		}
	}()

	if watchConfig {
		if err := watchConfigFile(ctx, configPath); err != nil {
			slog.Warn("config watch unavailable", "err", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}
	cancel()

	if detector != nil {
		detector.Stop()
	}
	// Cleanup emits the final disconnect events before the bus closes.
	if tkRouter != nil {
		tkRouter.Cleanup()
	}
	if twRouter != nil {
		twRouter.Cleanup()
	}
	if ytRouter != nil {
		ytRouter.Cleanup()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := ingestSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("ingest listener shutdown", "err", err)
	}
	if err := api.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http api shutdown", "err", err)
	}

	if async != nil {
		async.Close()
	}
	eventBus.Close()
	slog.Info("ingestd stopped")
}

func loadRawConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func setLogLevel(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warning", "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitOrigins(s string) []string {
	var origins []string
	for _, origin := range strings.Split(s, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// httpDiscovery polls an external endpoint for the set of currently live
// stream IDs.
func httpDiscovery(url string) youtube.Discovery {
	client := &http.Client{Timeout: 10 * time.Second}
	return func(ctx context.Context) ([]string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("discovery returned %s", resp.Status)
		}
		var ids []string
		if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
			return nil, err
		}
		return ids, nil
	}
}

// passiveConnector has no transport to attach: chat payloads arrive
// over the ingest websocket. The detector announces lifecycle events
// itself, so Connect and Disconnect only acknowledge.
type passiveConnector struct{}

func (passiveConnector) Connect(_ context.Context, streamID string) error {
	slog.Debug("youtube: stream attached", "stream", streamID)
	return nil
}

func (passiveConnector) Disconnect(streamID string) {
	slog.Debug("youtube: stream detached", "stream", streamID)
}

// watchConfigFile logs an advisory when the file changes. The loaded
// snapshot is immutable for the life of the process.
func watchConfigFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				// Editors often replace the file; re-add after the swap.
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					time.AfterFunc(250*time.Millisecond, func() { _ = watcher.Add(path) })
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(250*time.Millisecond, func() {
					slog.Info("config file changed on disk; restart to apply", "path", path)
				})
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "err", werr)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
