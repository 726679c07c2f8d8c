package live

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotLive reports that the channel has no current broadcast. It is an expected outcome.
	ErrNotLive = errors.New("channel not live")
	// ErrTransport wraps network and HTTP failures from a platform API.
	ErrTransport = errors.New("platform transport error")
	// ErrEmbedRestricted reports that a platform refuses inline embedding for a surface.
	ErrEmbedRestricted = errors.New("embed restricted by platform")
	// ErrConfigurationMissing reports that a required channel identifier or credential is absent.
	ErrConfigurationMissing = errors.New("configuration missing")
)

// Platform is a streaming platform the portal embeds.
type Platform string

const (
	PlatformTwitch  Platform = "twitch"
	PlatformYouTube Platform = "youtube"
)

// ParsePlatform accepts "twitch" or "youtube" in any case.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformTwitch:
		return PlatformTwitch, true
	case PlatformYouTube:
		return PlatformYouTube, true
	}
	return "", false
}

// Surface is an embeddable widget type.
type Surface string

const (
	SurfaceVideo Surface = "video"
	SurfaceChat  Surface = "chat"
)

// ParseSurface accepts "video" or "chat" in any case.
func ParseSurface(s string) (Surface, bool) {
	switch Surface(strings.ToLower(strings.TrimSpace(s))) {
	case SurfaceVideo:
		return SurfaceVideo, true
	case SurfaceChat:
		return SurfaceChat, true
	}
	return "", false
}

// ChannelRef identifies the broadcaster on each platform. It is supplied by configuration.
type ChannelRef struct {
	TwitchLogin      string `json:"twitch_login,omitempty"`
	YouTubeChannelID string `json:"youtube_channel_id,omitempty"`
}

// Require returns ErrConfigurationMissing when the identifier for p is empty.
func (c ChannelRef) Require(p Platform) error {
	switch p {
	case PlatformTwitch:
		if c.TwitchLogin == "" {
			return errors.Join(ErrConfigurationMissing, errors.New("twitch login empty"))
		}
	case PlatformYouTube:
		if c.YouTubeChannelID == "" {
			return errors.Join(ErrConfigurationMissing, errors.New("youtube channel id empty"))
		}
	default:
		return errors.Join(ErrConfigurationMissing, errors.New("unknown platform "+string(p)))
	}
	return nil
}

// LiveStreamInfo is a point-in-time answer from a platform: present only while broadcasting.
type LiveStreamInfo struct {
	VideoID   string    `json:"video_id"`
	Title     string    `json:"title"`
	StartedAt time.Time `json:"started_at"`

	// Optional presentation details; platforms fill what they know.
	URL          string `json:"url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	GameName     string `json:"game_name,omitempty"`
	ViewerCount  int    `json:"viewer_count,omitempty"`
}

// VideoInfo is one archived broadcast or upload.
type VideoInfo struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	URL          string        `json:"url"`
	ThumbnailURL string        `json:"thumbnail_url,omitempty"`
	PublishedAt  time.Time     `json:"published_at"`
	Duration     time.Duration `json:"duration_ns"`
	Views        int64         `json:"views"`
	Platform     Platform      `json:"platform"`
}

// LiveFinder looks up the current broadcast for a channel. A nil info with a nil error
// means the channel is not live.
type LiveFinder interface {
	FindLiveStream(ctx context.Context, channel ChannelRef) (*LiveStreamInfo, error)
}

// Resolution is the resolver's belief about which video id to embed right now.
// The zero value (Live=false, empty VideoID) means "none".
type Resolution struct {
	VideoID        string    `json:"video_id,omitempty"`
	Title          string    `json:"title,omitempty"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	Live           bool      `json:"live"`
	LastResolvedAt time.Time `json:"last_resolved_at,omitempty"`
	Seq            uint64    `json:"-"`
}

// HasVideo reports whether a concrete broadcast id is available.
func (r Resolution) HasVideo() bool { return r.Live && r.VideoID != "" }
