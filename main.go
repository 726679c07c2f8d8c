// Command streamportal serves the streamer portal backend.
// It:
//   - Loads configuration and initializes structured logging.
//   - Builds the Twitch and YouTube gateways from whatever credentials are present.
//   - Serves screen state over HTTP and WebSocket, plus archive, stats and metrics.
//   - Optionally polls both platforms and announces go-live events to Discord.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/streamportal/archive"
	"github.com/onnwee/streamportal/config"
	"github.com/onnwee/streamportal/live"
	"github.com/onnwee/streamportal/notify"
	"github.com/onnwee/streamportal/screen"
	"github.com/onnwee/streamportal/server"
	"github.com/onnwee/streamportal/stats"
	"github.com/onnwee/streamportal/telemetry"
	"github.com/onnwee/streamportal/twitchapi"
	"github.com/onnwee/streamportal/youtubeapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Tracing is optional; requires OTEL_EXPORTER_OTLP_ENDPOINT
	shutdown, err := telemetry.InitTracing("streamportal", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hc := &http.Client{Timeout: 15 * time.Second}
	channel := cfg.Channel()

	finders := map[live.Platform]live.LiveFinder{}
	archiveSources := map[live.Platform]archive.Lister{}
	statsSvc := &stats.Service{Channel: channel}

	if err := cfg.ValidateTwitch(); err == nil {
		gw := twitchapi.NewGateway(cfg.TwitchClientID, cfg.TwitchClientSecret, hc)
		// Best-effort warm-up so credential problems show at boot rather than on first request.
		warmCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
		if tok, err := gw.Helix.AppTokenSource.Get(warmCtx); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok) > 6 {
			slog.Info("twitch app token acquired", slog.String("tail", "***"+tok[len(tok)-6:]))
		}
		cancel()
		finders[live.PlatformTwitch] = gw
		archiveSources[live.PlatformTwitch] = gw
		statsSvc.Twitch = gw
	} else {
		slog.Info("twitch api disabled", slog.Any("reason", err))
	}

	// A nil finder leaves the YouTube resolver reporting not-live with a configuration error.
	var ytFinder live.LiveFinder
	if err := cfg.ValidateYouTube(); err == nil {
		yc, err := youtubeapi.New(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			slog.Error("youtube client init failed", slog.Any("err", err))
			os.Exit(1)
		}
		ytFinder = &live.CoalescingFinder{Finder: yc, Timeout: cfg.GatewayTimeout}
		finders[live.PlatformYouTube] = ytFinder
		archiveSources[live.PlatformYouTube] = yc
		statsSvc.YouTube = yc
	} else {
		slog.Info("youtube api disabled", slog.Any("reason", err))
	}

	rdb, err := archive.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unavailable, archive cache is in-process only", slog.Any("err", err))
		rdb = nil
	}
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close redis", slog.Any("err", err))
			}
		}()
	}

	screens := screen.NewRegistry(screen.Deps{
		Finder:          ytFinder,
		Channel:         channel,
		HostDomain:      cfg.SiteHost,
		DefaultPlatform: cfg.DefaultPlatform,
		Resolver: live.Options{
			PollInterval:     cfg.ResolverPollInterval,
			VisibilityMinAge: cfg.ResolverVisibilityMinAge,
			Timeout:          cfg.GatewayTimeout,
		},
	})
	defer screens.CloseAll()

	messages := notify.Builder{
		Name:      cfg.StreamerName,
		AvatarURL: cfg.StreamerAvatar,
		SiteURL:   cfg.SiteURL,
		Channel:   channel,
	}
	deps := server.Deps{
		Config:   cfg,
		Screens:  screens,
		Archive:  &archive.Service{Sources: archiveSources, Channel: channel, Cache: archive.NewCache(cfg.ArchiveCacheTTL, rdb), Timeout: cfg.GatewayTimeout},
		Stats:    statsSvc,
		Messages: messages,
		Redis:    rdb,
	}

	if cfg.DiscordWebhookURL != "" {
		sender := &notify.Discord{WebhookURL: cfg.DiscordWebhookURL, HTTPClient: hc}
		deps.Notifier = sender
		w := &notify.Watcher{
			Finders:         finders,
			Channel:         channel,
			Sender:          sender,
			Builder:         messages,
			Interval:        cfg.NotifyPollInterval,
			YouTubeInterval: cfg.NotifyYouTubePollInterval,
			Timeout:         cfg.GatewayTimeout,
		}
		go w.Run(ctx)
		slog.Info("go-live notifications enabled", slog.Int("platforms", len(finders)))
	} else {
		slog.Info("go-live notifications disabled (DISCORD_WEBHOOK_URL not set)")
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, deps); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}
