// Package youtubeapi wraps the YouTube Data API for the portal's read-only
// needs: live broadcast lookup, recent and popular uploads, and channel
// statistics. Requests are authorized with an API key, not OAuth.
package youtubeapi

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/onnwee/streamportal/live"
	"github.com/onnwee/streamportal/telemetry"
)

const maxResultsCap = 50

// Client is a YouTube Data API v3 client bound to an API key.
type Client struct {
	svc *yt.Service
}

// Channel summarizes a channel for the statistics page.
type Channel struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	Description           string `json:"description,omitempty"`
	CustomURL             string `json:"custom_url,omitempty"`
	ThumbnailURL          string `json:"thumbnail_url,omitempty"`
	Subscribers           uint64 `json:"subscribers"`
	HiddenSubscriberCount bool   `json:"hidden_subscriber_count,omitempty"`
	Views                 uint64 `json:"views"`
	Videos                uint64 `json:"videos"`
}

// New builds a client. Extra options (e.g. option.WithEndpoint in tests) are appended.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube api key: %w", live.ErrConfigurationMissing)
	}
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// FindLiveStream returns the channel's current live broadcast, or nil when none.
func (c *Client) FindLiveStream(ctx context.Context, channel live.ChannelRef) (*live.LiveStreamInfo, error) {
	if err := channel.Require(live.PlatformYouTube); err != nil {
		return nil, err
	}
	var res *yt.SearchListResponse
	err := observe(ctx, "search.live", func(ctx context.Context) (err error) {
		res, err = c.svc.Search.List([]string{"id", "snippet"}).
			ChannelId(channel.YouTubeChannelID).
			EventType("live").
			Type("video").
			MaxResults(1).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, item := range res.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		info := &live.LiveStreamInfo{
			VideoID: item.Id.VideoId,
			URL:     WatchURL(item.Id.VideoId),
		}
		if s := item.Snippet; s != nil {
			info.Title = s.Title
			info.StartedAt = parseTime(s.PublishedAt)
			info.ThumbnailURL = bestThumbnail(s.Thumbnails)
		}
		return info, nil
	}
	return nil, nil
}

// ListRecentVideos returns the newest uploads, newest first.
func (c *Client) ListRecentVideos(ctx context.Context, channel live.ChannelRef, limit int) ([]live.VideoInfo, error) {
	ids, err := c.searchIDs(ctx, channel, "date", clampResults(limit))
	if err != nil {
		return nil, err
	}
	return c.videoDetails(ctx, ids)
}

// ListPopularVideos returns the most viewed uploads. It over-fetches from
// search and re-sorts by the detailed view counts.
func (c *Client) ListPopularVideos(ctx context.Context, channel live.ChannelRef, limit int) ([]live.VideoInfo, error) {
	limit = clampResults(limit)
	ids, err := c.searchIDs(ctx, channel, "viewCount", clampResults(limit*2))
	if err != nil {
		return nil, err
	}
	vids, err := c.videoDetails(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(vids, func(i, j int) bool { return vids[i].Views > vids[j].Views })
	if len(vids) > limit {
		vids = vids[:limit]
	}
	return vids, nil
}

// GetChannel returns channel snippet and statistics.
func (c *Client) GetChannel(ctx context.Context, channel live.ChannelRef) (*Channel, error) {
	if err := channel.Require(live.PlatformYouTube); err != nil {
		return nil, err
	}
	var res *yt.ChannelListResponse
	err := observe(ctx, "channels", func(ctx context.Context) (err error) {
		res, err = c.svc.Channels.List([]string{"snippet", "statistics"}).
			Id(channel.YouTubeChannelID).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, fmt.Errorf("youtube channel %s not found", channel.YouTubeChannelID)
	}
	item := res.Items[0]
	out := &Channel{ID: item.Id}
	if s := item.Snippet; s != nil {
		out.Title = s.Title
		out.Description = s.Description
		out.CustomURL = s.CustomUrl
		out.ThumbnailURL = bestThumbnail(s.Thumbnails)
	}
	if st := item.Statistics; st != nil {
		out.Subscribers = st.SubscriberCount
		out.HiddenSubscriberCount = st.HiddenSubscriberCount
		out.Views = st.ViewCount
		out.Videos = st.VideoCount
	}
	return out, nil
}

func (c *Client) searchIDs(ctx context.Context, channel live.ChannelRef, order string, maxResults int) ([]string, error) {
	if err := channel.Require(live.PlatformYouTube); err != nil {
		return nil, err
	}
	var res *yt.SearchListResponse
	err := observe(ctx, "search."+order, func(ctx context.Context) (err error) {
		res, err = c.svc.Search.List([]string{"id"}).
			ChannelId(channel.YouTubeChannelID).
			Order(order).
			Type("video").
			MaxResults(int64(maxResults)).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	return ids, nil
}

// videoDetails fetches snippet, duration and statistics, keeping the order of ids.
func (c *Client) videoDetails(ctx context.Context, ids []string) ([]live.VideoInfo, error) {
	if len(ids) == 0 {
		return []live.VideoInfo{}, nil
	}
	var res *yt.VideoListResponse
	err := observe(ctx, "videos", func(ctx context.Context) (err error) {
		res, err = c.svc.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
			Id(ids...).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*yt.Video, len(res.Items))
	for _, v := range res.Items {
		byID[v.Id] = v
	}
	out := make([]live.VideoInfo, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			continue
		}
		info := live.VideoInfo{ID: v.Id, URL: WatchURL(v.Id), Platform: live.PlatformYouTube}
		if s := v.Snippet; s != nil {
			info.Title = s.Title
			info.PublishedAt = parseTime(s.PublishedAt)
			info.ThumbnailURL = bestThumbnail(s.Thumbnails)
		}
		if cd := v.ContentDetails; cd != nil {
			info.Duration = ParseISODuration(cd.Duration)
		}
		if st := v.Statistics; st != nil {
			info.Views = int64(st.ViewCount)
		}
		out = append(out, info)
	}
	return out, nil
}

func observe(ctx context.Context, op string, fn func(context.Context) error) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "youtubeapi", "youtube."+op, telemetry.PlatformAttr(string(live.PlatformYouTube)))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()
	telemetry.TimeFunc(telemetry.GatewayObserver(string(live.PlatformYouTube), op), func() {
		err = fn(ctx)
	})
	if err != nil {
		return fmt.Errorf("youtube %s: %w: %w", op, live.ErrTransport, err)
	}
	return nil
}

// WatchURL is the public watch page for a video.
func WatchURL(id string) string { return "https://www.youtube.com/watch?v=" + id }

func bestThumbnail(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func clampResults(n int) int {
	if n <= 0 {
		return 1
	}
	if n > maxResultsCap {
		return maxResultsCap
	}
	return n
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration parses the ISO-8601 durations YouTube reports ("PT1H2M3S").
// Unparseable input yields 0.
func ParseISODuration(s string) time.Duration {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	var d time.Duration
	for i, unit := range []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		d += time.Duration(n) * unit
	}
	return d
}
