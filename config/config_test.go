package config

import (
	"errors"
	"testing"
	"time"

	"github.com/onnwee/streamportal/live"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEFAULT_PLATFORM", "")
	t.Setenv("SITE_HOST", "")
	t.Setenv("RESOLVER_POLL_INTERVAL", "")
	t.Setenv("RESOLVER_VISIBILITY_MIN_AGE", "")
	t.Setenv("GATEWAY_TIMEOUT", "")
	t.Setenv("NOTIFY_POLL_INTERVAL", "")
	t.Setenv("NOTIFY_YOUTUBE_POLL_INTERVAL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DefaultPlatform != live.PlatformTwitch {
		t.Errorf("DefaultPlatform = %q, want twitch", cfg.DefaultPlatform)
	}
	if cfg.SiteHost != "localhost" {
		t.Errorf("SiteHost = %q, want localhost", cfg.SiteHost)
	}
	if cfg.ResolverPollInterval != 5*time.Minute {
		t.Errorf("ResolverPollInterval = %v, want 5m", cfg.ResolverPollInterval)
	}
	if cfg.ResolverVisibilityMinAge != time.Minute {
		t.Errorf("ResolverVisibilityMinAge = %v, want 60s", cfg.ResolverVisibilityMinAge)
	}
	if cfg.GatewayTimeout != 10*time.Second {
		t.Errorf("GatewayTimeout = %v, want 10s", cfg.GatewayTimeout)
	}
	if cfg.NotifyPollInterval != 2*time.Minute {
		t.Errorf("NotifyPollInterval = %v, want 2m", cfg.NotifyPollInterval)
	}
	if cfg.NotifyYouTubePollInterval != 15*time.Minute {
		t.Errorf("NotifyYouTubePollInterval = %v, want 15m", cfg.NotifyYouTubePollInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TWITCH_CHANNEL", " streamer ")
	t.Setenv("YOUTUBE_CHANNEL_ID", "UC123")
	t.Setenv("DEFAULT_PLATFORM", "YouTube")
	t.Setenv("RESOLVER_POLL_INTERVAL", "90s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DefaultPlatform != live.PlatformYouTube {
		t.Errorf("DefaultPlatform = %q, want youtube", cfg.DefaultPlatform)
	}
	if cfg.ResolverPollInterval != 90*time.Second {
		t.Errorf("ResolverPollInterval = %v, want 90s", cfg.ResolverPollInterval)
	}
	ch := cfg.Channel()
	if ch.TwitchLogin != "streamer" || ch.YouTubeChannelID != "UC123" {
		t.Errorf("Channel() = %+v", ch)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("CORSAllowedOrigins = %v, want 2 entries", cfg.CORSAllowedOrigins)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DEFAULT_PLATFORM", "kick"},
		{"RESOLVER_POLL_INTERVAL", "five minutes"},
		{"GATEWAY_TIMEOUT", "-1s"},
		{"NOTIFY_YOUTUBE_POLL_INTERVAL", "soon"},
		{"RATE_LIMIT_RPS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestValidatePlatforms(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateTwitch(); !errors.Is(err, live.ErrConfigurationMissing) {
		t.Errorf("ValidateTwitch() = %v, want ErrConfigurationMissing", err)
	}
	if err := cfg.ValidateYouTube(); !errors.Is(err, live.ErrConfigurationMissing) {
		t.Errorf("ValidateYouTube() = %v, want ErrConfigurationMissing", err)
	}
	cfg = &Config{
		TwitchChannel: "chan", TwitchClientID: "id", TwitchClientSecret: "secret",
		YouTubeChannelID: "UC1", YouTubeAPIKey: "key",
	}
	if err := cfg.ValidateTwitch(); err != nil {
		t.Errorf("ValidateTwitch() = %v", err)
	}
	if err := cfg.ValidateYouTube(); err != nil {
		t.Errorf("ValidateYouTube() = %v", err)
	}
}
