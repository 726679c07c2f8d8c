package archive

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/streamportal/live"
)

type stubLister struct {
	calls     atomic.Int32
	lastLimit atomic.Int32
	videos    []live.VideoInfo
	err       error
}

func (s *stubLister) ListRecentVideos(_ context.Context, _ live.ChannelRef, limit int) ([]live.VideoInfo, error) {
	s.calls.Add(1)
	s.lastLimit.Store(int32(limit))
	return s.videos, s.err
}

type stubPopular struct {
	stubLister
	popularCalls atomic.Int32
}

func (s *stubPopular) ListPopularVideos(_ context.Context, _ live.ChannelRef, limit int) ([]live.VideoInfo, error) {
	s.popularCalls.Add(1)
	return s.videos, s.err
}

var channel = live.ChannelRef{TwitchLogin: "streamer", YouTubeChannelID: "UCabc"}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultLimit}, {-3, DefaultLimit}, {1, 1}, {12, 12}, {50, 50}, {51, MaxLimit}, {500, MaxLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseOrder(t *testing.T) {
	if o, ok := ParseOrder(""); !ok || o != OrderRecent {
		t.Errorf("ParseOrder(\"\") = %q, %v", o, ok)
	}
	if o, ok := ParseOrder("popular"); !ok || o != OrderPopular {
		t.Errorf("ParseOrder(popular) = %q, %v", o, ok)
	}
	if _, ok := ParseOrder("oldest"); ok {
		t.Error("ParseOrder(oldest) ok, want false")
	}
}

func TestServiceListCaches(t *testing.T) {
	src := &stubLister{videos: []live.VideoInfo{{ID: "v1", Title: "one", Platform: live.PlatformTwitch}}}
	svc := &Service{
		Sources: map[live.Platform]Lister{live.PlatformTwitch: src},
		Channel: channel,
		Cache:   NewCache(time.Minute, nil),
	}
	for i := 0; i < 3; i++ {
		vids, err := svc.List(context.Background(), live.PlatformTwitch, OrderRecent, 0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(vids) != 1 || vids[0].ID != "v1" {
			t.Fatalf("List() = %+v", vids)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
	if n := src.lastLimit.Load(); n != DefaultLimit {
		t.Errorf("limit passed = %d, want %d", n, DefaultLimit)
	}
}

func TestServiceListWithoutCache(t *testing.T) {
	src := &stubLister{videos: nil}
	svc := &Service{Sources: map[live.Platform]Lister{live.PlatformYouTube: src}, Channel: channel}
	vids, err := svc.List(context.Background(), live.PlatformYouTube, OrderRecent, 100)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if vids == nil || len(vids) != 0 {
		t.Errorf("List() = %#v, want empty non-nil slice", vids)
	}
	if n := src.lastLimit.Load(); n != MaxLimit {
		t.Errorf("limit passed = %d, want %d", n, MaxLimit)
	}
}

func TestServiceListPopular(t *testing.T) {
	src := &stubPopular{stubLister: stubLister{videos: []live.VideoInfo{{ID: "p1"}}}}
	plain := &stubLister{}
	svc := &Service{
		Sources: map[live.Platform]Lister{live.PlatformYouTube: src, live.PlatformTwitch: plain},
		Channel: channel,
	}
	if _, err := svc.List(context.Background(), live.PlatformYouTube, OrderPopular, 5); err != nil {
		t.Fatalf("List(popular) error = %v", err)
	}
	if src.popularCalls.Load() != 1 || src.calls.Load() != 0 {
		t.Errorf("popular calls = %d, recent calls = %d", src.popularCalls.Load(), src.calls.Load())
	}
	if _, err := svc.List(context.Background(), live.PlatformTwitch, OrderPopular, 5); !errors.Is(err, ErrUnsupported) {
		t.Errorf("List(twitch popular) error = %v, want ErrUnsupported", err)
	}
}

func TestServiceListErrors(t *testing.T) {
	src := &stubLister{err: live.ErrTransport}
	svc := &Service{
		Sources: map[live.Platform]Lister{live.PlatformTwitch: src},
		Channel: channel,
		Cache:   NewCache(time.Minute, nil),
	}
	if _, err := svc.List(context.Background(), live.PlatformTwitch, OrderRecent, 5); !errors.Is(err, live.ErrTransport) {
		t.Errorf("List() error = %v, want ErrTransport", err)
	}
	// Failures are not cached.
	if _, err := svc.List(context.Background(), live.PlatformTwitch, OrderRecent, 5); err == nil {
		t.Error("second List() error = nil, want error")
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("source called %d times, want 2", n)
	}
	if _, err := svc.List(context.Background(), live.PlatformYouTube, OrderRecent, 5); !errors.Is(err, ErrUnsupported) {
		t.Errorf("List(youtube) error = %v, want ErrUnsupported", err)
	}
	noChannel := &Service{Sources: svc.Sources}
	if _, err := noChannel.List(context.Background(), live.PlatformTwitch, OrderRecent, 5); !errors.Is(err, live.ErrConfigurationMissing) {
		t.Errorf("List() without channel error = %v, want ErrConfigurationMissing", err)
	}
}

type blockingLister struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (b *blockingLister) ListRecentVideos(ctx context.Context, _ live.ChannelRef, _ int) ([]live.VideoInfo, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	select {
	case <-b.release:
		return []live.VideoInfo{{ID: "v1"}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestServiceListSharedCallSurvivesFirstCallerCancel(t *testing.T) {
	src := &blockingLister{started: make(chan struct{}), release: make(chan struct{})}
	svc := &Service{
		Sources: map[live.Platform]Lister{live.PlatformTwitch: src},
		Channel: channel,
		Timeout: 5 * time.Second,
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.List(firstCtx, live.PlatformTwitch, OrderRecent, 5)
		firstErr <- err
	}()
	<-src.started

	type result struct {
		vids []live.VideoInfo
		err  error
	}
	second := make(chan result, 1)
	go func() {
		vids, err := svc.List(context.Background(), live.PlatformTwitch, OrderRecent, 5)
		second <- result{vids, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", err)
	}
	close(src.release)
	got := <-second
	if got.err != nil || len(got.vids) != 1 || got.vids[0].ID != "v1" {
		t.Fatalf("joined caller = %+v, %v; want one video", got.vids, got.err)
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
}
