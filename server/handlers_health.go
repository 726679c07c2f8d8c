package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HandleHealthz responds to liveness probes.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports whether the portal can embed anything: a site host for
// Twitch parent parameters, at least one configured channel, and a reachable
// Redis when one is configured.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"site_host", func(context.Context) error {
			if h.cfg.SiteHost == "" {
				return errors.New("SITE_HOST empty")
			}
			return nil
		}},
		{"channel", func(context.Context) error {
			if h.cfg.TwitchChannel == "" && h.cfg.YouTubeChannelID == "" {
				return errors.New("neither TWITCH_CHANNEL nor YOUTUBE_CHANNEL_ID configured")
			}
			return nil
		}},
		{"redis", func(ctx context.Context) error {
			if h.deps.Redis == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return h.deps.Redis.Ping(ctx).Err()
		}},
	}

	for _, check := range checks {
		if err := check.fn(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"twitch":  h.cfg.ValidateTwitch() == nil,
		"youtube": h.cfg.ValidateYouTube() == nil,
	})
}
