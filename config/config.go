// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Missing platform credentials do not fail Load; they disable the features that need them
// (use ValidateTwitch / ValidateYouTube where a platform is required).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/streamportal/live"
)

type Config struct {
	// Twitch
	TwitchChannel      string
	TwitchClientID     string
	TwitchClientSecret string

	// YouTube (Data API v3, read-only API key)
	YouTubeChannelID string
	YouTubeAPIKey    string

	// Site
	SiteHost        string
	SiteURL         string
	DefaultPlatform live.Platform
	HTTPAddr        string

	// Live resolver
	ResolverPollInterval     time.Duration
	ResolverVisibilityMinAge time.Duration
	GatewayTimeout           time.Duration

	// Notifications
	DiscordWebhookURL         string
	StreamerName              string
	StreamerAvatar            string
	NotifyPollInterval        time.Duration
	NotifyYouTubePollInterval time.Duration // kept long: a YouTube live search costs 100 quota units

	// Archive cache
	RedisURL        string
	ArchiveCacheTTL time.Duration

	// HTTP protection
	AdminToken         string
	CORSPermissive     bool
	CORSAllowedOrigins []string
	RateLimitEnabled   bool
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads environment variables and applies defaults. Malformed durations or an unknown
// DEFAULT_PLATFORM are reported as errors; everything else falls back to a default.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchChannel = strings.TrimSpace(os.Getenv("TWITCH_CHANNEL"))
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")

	cfg.YouTubeChannelID = strings.TrimSpace(os.Getenv("YOUTUBE_CHANNEL_ID"))
	cfg.YouTubeAPIKey = os.Getenv("YOUTUBE_API_KEY")

	cfg.SiteHost = os.Getenv("SITE_HOST")
	if cfg.SiteHost == "" {
		cfg.SiteHost = "localhost"
	}
	cfg.SiteURL = os.Getenv("WEBSITE_URL")
	if cfg.SiteURL == "" {
		cfg.SiteURL = "https://" + cfg.SiteHost
	}

	cfg.DefaultPlatform = live.PlatformTwitch
	if v := os.Getenv("DEFAULT_PLATFORM"); v != "" {
		p, ok := live.ParsePlatform(v)
		if !ok {
			return nil, fmt.Errorf("invalid DEFAULT_PLATFORM %q (want twitch or youtube)", v)
		}
		cfg.DefaultPlatform = p
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	var err error
	if cfg.ResolverPollInterval, err = durationEnv("RESOLVER_POLL_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ResolverVisibilityMinAge, err = durationEnv("RESOLVER_VISIBILITY_MIN_AGE", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.GatewayTimeout, err = durationEnv("GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.DiscordWebhookURL = os.Getenv("DISCORD_WEBHOOK_URL")
	cfg.StreamerName = os.Getenv("STREAMER_NAME")
	if cfg.StreamerName == "" {
		cfg.StreamerName = cfg.TwitchChannel
	}
	cfg.StreamerAvatar = os.Getenv("STREAMER_AVATAR")
	if cfg.NotifyPollInterval, err = durationEnv("NOTIFY_POLL_INTERVAL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.NotifyYouTubePollInterval, err = durationEnv("NOTIFY_YOUTUBE_POLL_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.ArchiveCacheTTL, err = durationEnv("ARCHIVE_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	// Permissive CORS in dev, restricted in production unless explicitly overridden.
	mode := strings.ToLower(os.Getenv("ENV"))
	cfg.CORSPermissive = mode == "" || mode == "dev" || mode == "development"
	if v := os.Getenv("CORS_PERMISSIVE"); v != "" {
		cfg.CORSPermissive = v == "1" || v == "true"
	}
	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	cfg.RateLimitEnabled = os.Getenv("RATE_LIMIT_ENABLED") != "0"
	cfg.RateLimitRPS = 5
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q", v)
		}
		cfg.RateLimitRPS = f
	}
	cfg.RateLimitBurst = 20
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST %q", v)
		}
		cfg.RateLimitBurst = n
	}

	return cfg, nil
}

// Channel returns the broadcaster identifiers for both platforms.
func (c *Config) Channel() live.ChannelRef {
	return live.ChannelRef{TwitchLogin: c.TwitchChannel, YouTubeChannelID: c.YouTubeChannelID}
}

// ValidateTwitch checks the fields needed for Helix API access.
func (c *Config) ValidateTwitch() error {
	if c.TwitchChannel == "" || c.TwitchClientID == "" || c.TwitchClientSecret == "" {
		return fmt.Errorf("%w: require TWITCH_CHANNEL, TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET", live.ErrConfigurationMissing)
	}
	return nil
}

// ValidateYouTube checks the fields needed for YouTube Data API access.
func (c *Config) ValidateYouTube() error {
	if c.YouTubeChannelID == "" || c.YouTubeAPIKey == "" {
		return fmt.Errorf("%w: require YOUTUBE_CHANNEL_ID, YOUTUBE_API_KEY", live.ErrConfigurationMissing)
	}
	return nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q (Go duration, e.g. 30s)", key, v)
	}
	return d, nil
}
