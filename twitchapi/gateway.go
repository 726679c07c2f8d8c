package twitchapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/streamportal/live"
)

// Gateway adapts HelixClient to the portal's platform gateway contract.
type Gateway struct {
	Helix *HelixClient

	userIDs sync.Map // login -> user id
}

// NewGateway builds a gateway with its own token source.
func NewGateway(clientID, clientSecret string, hc *http.Client) *Gateway {
	ts := &TokenSource{ClientID: clientID, ClientSecret: clientSecret, HTTPClient: hc}
	return &Gateway{Helix: &HelixClient{AppTokenSource: ts, ClientID: clientID, HTTPClient: hc}}
}

// FindLiveStream reports the channel's current broadcast, or nil when offline.
func (g *Gateway) FindLiveStream(ctx context.Context, channel live.ChannelRef) (*live.LiveStreamInfo, error) {
	if err := channel.Require(live.PlatformTwitch); err != nil {
		return nil, err
	}
	streams, err := g.Helix.GetStreams(ctx, channel.TwitchLogin)
	if err != nil {
		return nil, err
	}
	for _, s := range streams {
		if s.Type != "" && s.Type != "live" {
			continue
		}
		return &live.LiveStreamInfo{
			VideoID:      s.ID,
			Title:        s.Title,
			StartedAt:    s.StartedAt,
			URL:          "https://www.twitch.tv/" + channel.TwitchLogin,
			ThumbnailURL: ThumbnailURL(s.ThumbnailURL, 1280, 720),
			GameName:     s.GameName,
			ViewerCount:  s.ViewerCount,
		}, nil
	}
	return nil, nil
}

// ListRecentVideos returns up to limit archived broadcasts, newest first.
func (g *Gateway) ListRecentVideos(ctx context.Context, channel live.ChannelRef, limit int) ([]live.VideoInfo, error) {
	if err := channel.Require(live.PlatformTwitch); err != nil {
		return nil, err
	}
	userID, err := g.userID(ctx, channel.TwitchLogin)
	if err != nil {
		return nil, err
	}
	vids, _, err := g.Helix.ListVideos(ctx, userID, "", limit)
	if err != nil {
		return nil, err
	}
	out := make([]live.VideoInfo, 0, len(vids))
	for _, v := range vids {
		out = append(out, v.toVideoInfo())
	}
	return out, nil
}

// User returns the channel's profile.
func (g *Gateway) User(ctx context.Context, channel live.ChannelRef) (*User, error) {
	if err := channel.Require(live.PlatformTwitch); err != nil {
		return nil, err
	}
	u, err := g.Helix.GetUser(ctx, channel.TwitchLogin)
	if err != nil {
		return nil, err
	}
	g.userIDs.Store(channel.TwitchLogin, u.ID)
	return u, nil
}

// TopClips returns clips created within the last window.
func (g *Gateway) TopClips(ctx context.Context, channel live.ChannelRef, window time.Duration, limit int) ([]Clip, error) {
	if err := channel.Require(live.PlatformTwitch); err != nil {
		return nil, err
	}
	userID, err := g.userID(ctx, channel.TwitchLogin)
	if err != nil {
		return nil, err
	}
	var since time.Time
	if window > 0 {
		since = time.Now().Add(-window)
	}
	return g.Helix.GetClips(ctx, userID, since, limit)
}

func (g *Gateway) userID(ctx context.Context, login string) (string, error) {
	if id, ok := g.userIDs.Load(login); ok {
		return id.(string), nil
	}
	id, err := g.Helix.GetUserID(ctx, login)
	if err != nil {
		return "", err
	}
	g.userIDs.Store(login, id)
	return id, nil
}

func (v VideoMeta) toVideoInfo() live.VideoInfo {
	u := v.URL
	if u == "" {
		u = "https://www.twitch.tv/videos/" + v.ID
	}
	published := v.PublishedAt
	if published == "" {
		published = v.CreatedAt
	}
	at, _ := time.Parse(time.RFC3339, published)
	return live.VideoInfo{
		ID:           v.ID,
		Title:        v.Title,
		URL:          u,
		ThumbnailURL: ThumbnailURL(v.ThumbnailURL, 640, 360),
		PublishedAt:  at,
		Duration:     ParseDuration(v.Duration),
		Views:        v.ViewCount,
		Platform:     live.PlatformTwitch,
	}
}

// ThumbnailURL fills the size placeholders Twitch uses in thumbnail templates
// ("{width}x{height}" for streams, "%{width}x%{height}" for videos).
func ThumbnailURL(tmpl string, width, height int) string {
	w, h := strconv.Itoa(width), strconv.Itoa(height)
	r := strings.NewReplacer("%{width}", w, "%{height}", h, "{width}", w, "{height}", h)
	return r.Replace(tmpl)
}

// ParseDuration parses Twitch durations such as "1h2m3s"; invalid input yields 0.
func ParseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
