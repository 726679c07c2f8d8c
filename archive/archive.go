// Package archive lists past broadcasts and uploads for the archive page,
// cached to spare platform quotas.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/onnwee/streamportal/live"
)

// Limits for List.
const (
	DefaultLimit = 12
	MaxLimit     = 50
)

// Order selects which videos List returns.
type Order string

const (
	OrderRecent  Order = "recent"
	OrderPopular Order = "popular"
)

// ErrUnsupported is returned when a platform has no source for the requested order.
var ErrUnsupported = errors.New("archive listing not supported")

// Lister lists a channel's newest videos.
type Lister interface {
	ListRecentVideos(ctx context.Context, channel live.ChannelRef, limit int) ([]live.VideoInfo, error)
}

// PopularLister lists a channel's most viewed videos.
type PopularLister interface {
	ListPopularVideos(ctx context.Context, channel live.ChannelRef, limit int) ([]live.VideoInfo, error)
}

// Service serves archive listings through the cache.
type Service struct {
	Sources map[live.Platform]Lister
	Channel live.ChannelRef
	Cache   *Cache
	// Timeout bounds a shared upstream call, which outlives any single caller's context.
	Timeout time.Duration

	group singleflight.Group
}

// ParseOrder accepts "recent" (default) or "popular".
func ParseOrder(s string) (Order, bool) {
	switch Order(s) {
	case "", OrderRecent:
		return OrderRecent, true
	case OrderPopular:
		return OrderPopular, true
	}
	return "", false
}

// ClampLimit maps n into [1, MaxLimit], using DefaultLimit for n <= 0.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

// List returns up to limit videos for platform in the given order.
func (s *Service) List(ctx context.Context, platform live.Platform, order Order, limit int) ([]live.VideoInfo, error) {
	limit = ClampLimit(limit)
	if err := s.Channel.Require(platform); err != nil {
		return nil, err
	}
	src, ok := s.Sources[platform]
	if !ok || src == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, platform)
	}
	fetch := func(ctx context.Context) ([]live.VideoInfo, error) {
		return src.ListRecentVideos(ctx, s.Channel, limit)
	}
	if order == OrderPopular {
		pl, ok := src.(PopularLister)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s", ErrUnsupported, platform, order)
		}
		fetch = func(ctx context.Context) ([]live.VideoInfo, error) {
			return pl.ListPopularVideos(ctx, s.Channel, limit)
		}
	}

	key := CacheKey(string(platform), string(order), strconv.Itoa(limit), s.Channel.TwitchLogin, s.Channel.YouTubeChannelID)
	var out []live.VideoInfo
	if s.Cache != nil && s.Cache.Get(ctx, key, &out) {
		return out, nil
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = live.DefaultGatewayTimeout
	}
	ch := s.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		vids, err := fetch(callCtx)
		if err != nil {
			return nil, err
		}
		if vids == nil {
			vids = []live.VideoInfo{}
		}
		if s.Cache != nil {
			s.Cache.Set(callCtx, key, vids)
		}
		return vids, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			slog.Warn("archive: list failed", slog.String("platform", string(platform)), slog.String("order", string(order)), slog.Any("err", res.Err))
			return nil, res.Err
		}
		return res.Val.([]live.VideoInfo), nil
	}
}
