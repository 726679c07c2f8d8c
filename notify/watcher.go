package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/streamportal/live"
)

// DefaultPollInterval is how often Watcher checks Twitch.
const DefaultPollInterval = 2 * time.Minute

// DefaultYouTubePollInterval is how often Watcher checks YouTube. A live search
// costs 100 quota units, so polling stays well inside the default daily quota
// that the screens' resolvers share.
const DefaultYouTubePollInterval = 15 * time.Minute

// Watcher announces each offline to live transition once per platform.
//
// The first successful lookup for a platform only records its state, so a
// restart during a broadcast does not announce it again. A failed lookup keeps
// the previous state. A failed send is retried on the next check.
type Watcher struct {
	Finders  map[live.Platform]live.LiveFinder
	Channel  live.ChannelRef
	Sender   Sender
	Builder  Builder
	Interval time.Duration
	// YouTubeInterval overrides Interval for YouTube; zero means DefaultYouTubePollInterval.
	YouTubeInterval time.Duration
	Timeout         time.Duration
	Now             func() time.Time

	mu       sync.Mutex
	primed   map[live.Platform]bool
	due      map[live.Platform]time.Time
	lastLive map[live.Platform]string // video id of the announced broadcast, "" when offline
}

func (w *Watcher) interval(p live.Platform) time.Duration {
	if p == live.PlatformYouTube {
		if w.YouTubeInterval > 0 {
			return w.YouTubeInterval
		}
		return DefaultYouTubePollInterval
	}
	if w.Interval > 0 {
		return w.Interval
	}
	return DefaultPollInterval
}

func (w *Watcher) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Run polls until ctx is cancelled. It wakes at the shortest platform interval;
// each platform is looked up only once its own interval has passed.
func (w *Watcher) Run(ctx context.Context) {
	every := time.Duration(0)
	for p := range w.Finders {
		if d := w.interval(p); every == 0 || d < every {
			every = d
		}
	}
	if every == 0 {
		every = DefaultPollInterval
	}
	slog.Info("notify: watcher started", slog.Duration("interval", every), slog.Duration("youtube_interval", w.interval(live.PlatformYouTube)), slog.Int("platforms", len(w.Finders)))
	w.Check(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Check(ctx)
		}
	}
}

// Check looks up every platform whose interval has passed and sends any due
// announcements.
func (w *Watcher) Check(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastLive == nil {
		w.lastLive = make(map[live.Platform]string)
		w.primed = make(map[live.Platform]bool)
		w.due = make(map[live.Platform]time.Time)
	}
	now := w.now()
	for _, p := range []live.Platform{live.PlatformTwitch, live.PlatformYouTube} {
		f, ok := w.Finders[p]
		if !ok || f == nil || w.Channel.Require(p) != nil {
			continue
		}
		if next, ok := w.due[p]; ok && now.Before(next) {
			continue
		}
		w.due[p] = now.Add(w.interval(p))
		w.checkLocked(ctx, p, f)
	}
}

func (w *Watcher) checkLocked(ctx context.Context, p live.Platform, f live.LiveFinder) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = live.DefaultGatewayTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	info, err := f.FindLiveStream(cctx, w.Channel)
	cancel()
	if err != nil {
		slog.Debug("notify: live lookup failed", slog.String("platform", string(p)), slog.Any("err", err))
		return
	}
	id := ""
	if info != nil {
		id = info.VideoID
	}
	if !w.primed[p] {
		w.primed[p] = true
		w.lastLive[p] = id
		return
	}
	if id == "" {
		w.lastLive[p] = ""
		return
	}
	if w.lastLive[p] == id {
		return
	}

	var msg Message
	if p == live.PlatformTwitch {
		msg = w.Builder.TwitchLive(*info)
	} else {
		msg = w.Builder.YouTubeLive(*info)
	}
	if err := w.Sender.Send(ctx, msg); err != nil {
		slog.Warn("notify: send failed", slog.String("platform", string(p)), slog.Any("err", err))
		return
	}
	w.lastLive[p] = info.VideoID
	slog.Info("notify: announced broadcast", slog.String("platform", string(p)), slog.String("video_id", info.VideoID))
}
