// Package stats assembles the statistics page from both platforms' public profile data.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/streamportal/live"
	"github.com/onnwee/streamportal/twitchapi"
	"github.com/onnwee/streamportal/youtubeapi"
)

// Summary status values.
const (
	StatusOK         = "ok"
	StatusPartial    = "partial"
	StatusComingSoon = "coming_soon"
)

const (
	defaultClipWindow = 30 * 24 * time.Hour
	defaultClipLimit  = 5
)

// ChannelSource supplies YouTube channel statistics.
type ChannelSource interface {
	GetChannel(ctx context.Context, channel live.ChannelRef) (*youtubeapi.Channel, error)
}

// ProfileSource supplies the Twitch profile and recent clips.
type ProfileSource interface {
	User(ctx context.Context, channel live.ChannelRef) (*twitchapi.User, error)
	TopClips(ctx context.Context, channel live.ChannelRef, window time.Duration, limit int) ([]twitchapi.Clip, error)
}

// TwitchStats is the Twitch half of a Summary.
type TwitchStats struct {
	Login           string           `json:"login"`
	DisplayName     string           `json:"display_name"`
	Description     string           `json:"description,omitempty"`
	ProfileImageURL string           `json:"profile_image_url,omitempty"`
	BroadcasterType string           `json:"broadcaster_type,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	Clips           []twitchapi.Clip `json:"clips"`
}

// Summary is the statistics page payload. Halves that could not be loaded are omitted.
type Summary struct {
	Status  string              `json:"status"`
	YouTube *youtubeapi.Channel `json:"youtube,omitempty"`
	Twitch  *TwitchStats        `json:"twitch,omitempty"`
}

// Service combines the configured sources. Either source may be nil.
type Service struct {
	YouTube    ChannelSource
	Twitch     ProfileSource
	Channel    live.ChannelRef
	ClipWindow time.Duration
	ClipLimit  int
}

// Summary loads both halves concurrently. Each half fails soft: an error is logged and
// the half omitted, leaving Status "partial". With no sources configured the status is
// "coming_soon".
func (s *Service) Summary(ctx context.Context) Summary {
	ytOn := s.YouTube != nil && s.Channel.Require(live.PlatformYouTube) == nil
	twOn := s.Twitch != nil && s.Channel.Require(live.PlatformTwitch) == nil
	if !ytOn && !twOn {
		return Summary{Status: StatusComingSoon}
	}

	var (
		out Summary
		wg  sync.WaitGroup
	)
	if ytOn {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, err := s.YouTube.GetChannel(ctx, s.Channel)
			if err != nil {
				slog.Warn("stats: youtube channel failed", slog.Any("err", err))
				return
			}
			out.YouTube = ch
		}()
	}
	if twOn {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.Twitch = s.twitch(ctx)
		}()
	}
	wg.Wait()

	out.Status = StatusPartial
	if out.YouTube != nil && out.Twitch != nil {
		out.Status = StatusOK
	}
	return out
}

func (s *Service) twitch(ctx context.Context) *TwitchStats {
	u, err := s.Twitch.User(ctx, s.Channel)
	if err != nil {
		slog.Warn("stats: twitch user failed", slog.Any("err", err))
		return nil
	}
	ts := &TwitchStats{
		Login:           u.Login,
		DisplayName:     u.DisplayName,
		Description:     u.Description,
		ProfileImageURL: u.ProfileImageURL,
		BroadcasterType: u.BroadcasterType,
		CreatedAt:       u.CreatedAt,
		Clips:           []twitchapi.Clip{},
	}
	window, limit := s.ClipWindow, s.ClipLimit
	if window <= 0 {
		window = defaultClipWindow
	}
	if limit <= 0 {
		limit = defaultClipLimit
	}
	// Clips are decoration; the profile stands on its own.
	clips, err := s.Twitch.TopClips(ctx, s.Channel, window, limit)
	if err != nil {
		slog.Debug("stats: twitch clips failed", slog.Any("err", err))
	} else if clips != nil {
		ts.Clips = clips
	}
	return ts
}
