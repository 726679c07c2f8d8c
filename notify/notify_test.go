package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/streamportal/live"
	"github.com/onnwee/streamportal/telemetry"
)

var testBuilder = Builder{
	Name:      "Streamer",
	AvatarURL: "https://example.com/logo.png",
	SiteURL:   "https://example.com",
	Channel:   live.ChannelRef{TwitchLogin: "streamer", YouTubeChannelID: "UCabc"},
	Now:       func() time.Time { return time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC) },
}

func TestDiscordSend(t *testing.T) {
	telemetry.Init()
	sentBefore := testutil.ToFloat64(telemetry.NotificationsSent.WithLabelValues(KindTwitchLive))

	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := &Discord{WebhookURL: srv.URL, HTTPClient: srv.Client()}
	msg := testBuilder.TwitchLive(live.LiveStreamInfo{VideoID: "s1", Title: "Speedruns", GameName: "Celeste", ViewerCount: 42})
	if err := d.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.Username != "Streamer Bot" || len(got.Embeds) != 1 {
		t.Fatalf("payload = %+v", got)
	}
	e := got.Embeds[0]
	if e.Color != TwitchColor || e.Title != "Speedruns" || e.URL != "https://twitch.tv/streamer" {
		t.Errorf("embed = %+v", e)
	}
	if len(e.Fields) != 3 || e.Fields[1].Value != "42" || e.Fields[2].Value != "[example.com](https://example.com)" {
		t.Errorf("fields = %+v", e.Fields)
	}
	if delta := testutil.ToFloat64(telemetry.NotificationsSent.WithLabelValues(KindTwitchLive)) - sentBefore; delta != 1 {
		t.Errorf("sent metric delta = %v, want 1", delta)
	}
}

func TestDiscordSendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid webhook token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tests := []struct {
		name string
		d    *Discord
		want error
	}{
		{"missing url", &Discord{}, live.ErrConfigurationMissing},
		{"non-2xx", &Discord{WebhookURL: srv.URL, HTTPClient: srv.Client()}, live.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Send(context.Background(), testBuilder.Test())
			if !errors.Is(err, tt.want) {
				t.Errorf("Send() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	short := "hello"
	if Truncate(short) != short {
		t.Errorf("Truncate(short) changed input")
	}
	exact := strings.Repeat("a", 200)
	if Truncate(exact) != exact {
		t.Errorf("Truncate(200 chars) changed input")
	}
	long := strings.Repeat("ż", 250)
	got := Truncate(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != 203 {
		t.Errorf("Truncate(long) rune length = %d", len([]rune(got)))
	}
}

func TestBuilders(t *testing.T) {
	t.Run("youtube live", func(t *testing.T) {
		m := testBuilder.YouTubeLive(live.LiveStreamInfo{VideoID: "abc", Title: "Live now"})
		e := m.Embeds[0]
		if m.Kind != KindYouTubeLive || e.Color != YouTubeColor || e.URL != "https://youtube.com/watch?v=abc" {
			t.Errorf("message = %+v", m)
		}
		if e.Author.URL != "https://youtube.com/channel/UCabc" {
			t.Errorf("author url = %q", e.Author.URL)
		}
		if e.Timestamp != "2025-03-01T18:00:00Z" {
			t.Errorf("timestamp = %q", e.Timestamp)
		}
	})
	t.Run("new video truncates", func(t *testing.T) {
		m := testBuilder.NewVideo(live.VideoInfo{ID: "v1", Title: "Upload", URL: "https://youtube.com/watch?v=v1", Platform: live.PlatformYouTube}, strings.Repeat("x", 300))
		if d := m.Embeds[0].Description; len(d) != 203 {
			t.Errorf("description length = %d, want 203", len(d))
		}
	})
	t.Run("scheduled with game", func(t *testing.T) {
		at := time.Date(2025, 3, 7, 20, 30, 0, 0, time.UTC)
		m := testBuilder.Scheduled(live.PlatformTwitch, "Friday stream", at, "Celeste")
		e := m.Embeds[0]
		if e.Color != TwitchColor || len(e.Fields) != 5 {
			t.Fatalf("embed = %+v", e)
		}
		if e.Fields[0].Value != "Friday, 7 March 2025" || e.Fields[1].Value != "20:30" {
			t.Errorf("date fields = %+v", e.Fields[:2])
		}
	})
	t.Run("scheduled without game", func(t *testing.T) {
		m := testBuilder.Scheduled(live.PlatformYouTube, "Q&A", time.Now(), "")
		if e := m.Embeds[0]; e.Color != YouTubeColor || len(e.Fields) != 4 {
			t.Errorf("embed = %+v", e)
		}
	})
}

type seqFinder struct {
	mu      sync.Mutex
	answers []*live.LiveStreamInfo
	errs    []error
	i       int
}

func (f *seqFinder) FindLiveStream(context.Context, live.ChannelRef) (*live.LiveStreamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.i
	if i >= len(f.answers) {
		i = len(f.answers) - 1
	}
	f.i++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.answers[i], err
}

type recordSender struct {
	mu   sync.Mutex
	sent []Message
	fail bool
}

func (s *recordSender) Send(_ context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("webhook down")
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *recordSender) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.Kind)
	}
	return out
}

// hourly returns a clock that moves an hour forward on every read, so every
// Check finds each platform due.
func hourly() func() time.Time {
	t := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Hour)
		return t
	}
}

func liveInfo(id string) *live.LiveStreamInfo { return &live.LiveStreamInfo{VideoID: id, Title: "t"} }

func TestWatcherAnnouncesTransitionsOnce(t *testing.T) {
	tw := &seqFinder{answers: []*live.LiveStreamInfo{nil, liveInfo("s1"), liveInfo("s1"), nil, liveInfo("s2")}}
	sender := &recordSender{}
	w := &Watcher{
		Finders: map[live.Platform]live.LiveFinder{live.PlatformTwitch: tw},
		Channel: testBuilder.Channel,
		Sender:  sender,
		Builder: testBuilder,
		Now:     hourly(),
	}
	for i := 0; i < 5; i++ {
		w.Check(context.Background())
	}
	got := sender.kinds()
	if len(got) != 2 || got[0] != KindTwitchLive || got[1] != KindTwitchLive {
		t.Errorf("sent = %v, want two twitch announcements", got)
	}
}

func TestWatcherFirstCheckPrimes(t *testing.T) {
	yt := &seqFinder{answers: []*live.LiveStreamInfo{liveInfo("v1"), liveInfo("v1")}}
	sender := &recordSender{}
	w := &Watcher{
		Finders: map[live.Platform]live.LiveFinder{live.PlatformYouTube: yt},
		Channel: testBuilder.Channel,
		Sender:  sender,
		Builder: testBuilder,
		Now:     hourly(),
	}
	w.Check(context.Background())
	w.Check(context.Background())
	if n := len(sender.kinds()); n != 0 {
		t.Errorf("sent %d messages for a broadcast live at startup, want 0", n)
	}
}

func TestWatcherErrorKeepsStateAndRetriesSend(t *testing.T) {
	tw := &seqFinder{
		answers: []*live.LiveStreamInfo{nil, liveInfo("s1"), nil, liveInfo("s1")},
		errs:    []error{nil, nil, live.ErrTransport, nil},
	}
	sender := &recordSender{fail: true}
	w := &Watcher{
		Finders: map[live.Platform]live.LiveFinder{live.PlatformTwitch: tw},
		Channel: testBuilder.Channel,
		Sender:  sender,
		Builder: testBuilder,
		Now:     hourly(),
	}
	w.Check(context.Background()) // offline, primes
	w.Check(context.Background()) // live, send fails
	sender.mu.Lock()
	sender.fail = false
	sender.mu.Unlock()
	w.Check(context.Background()) // lookup error, state kept
	w.Check(context.Background()) // live, retried
	if got := sender.kinds(); len(got) != 1 {
		t.Errorf("sent = %v, want one announcement after retry", got)
	}
}

func TestWatcherSkipsUnconfigured(t *testing.T) {
	yt := &seqFinder{answers: []*live.LiveStreamInfo{nil, liveInfo("v1")}}
	w := &Watcher{
		Finders: map[live.Platform]live.LiveFinder{live.PlatformYouTube: yt},
		Channel: live.ChannelRef{TwitchLogin: "streamer"},
		Sender:  &recordSender{},
		Builder: testBuilder,
		Now:     hourly(),
	}
	w.Check(context.Background())
	w.Check(context.Background())
	if yt.i != 0 {
		t.Errorf("finder called %d times for unconfigured channel", yt.i)
	}
}

func TestWatcherPrimesOnlyAfterSuccessfulLookup(t *testing.T) {
	yt := &seqFinder{
		answers: []*live.LiveStreamInfo{nil, liveInfo("v1"), liveInfo("v1")},
		errs:    []error{live.ErrTransport},
	}
	sender := &recordSender{}
	w := &Watcher{
		Finders: map[live.Platform]live.LiveFinder{live.PlatformYouTube: yt},
		Channel: testBuilder.Channel,
		Sender:  sender,
		Builder: testBuilder,
		Now:     hourly(),
	}
	w.Check(context.Background()) // lookup fails, not primed
	w.Check(context.Background()) // already live, primes
	w.Check(context.Background()) // same broadcast
	if got := sender.kinds(); len(got) != 0 {
		t.Errorf("sent = %v for a broadcast live before the first successful lookup, want none", got)
	}
}

func TestWatcherYouTubeUsesOwnInterval(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tw := &seqFinder{answers: []*live.LiveStreamInfo{nil}}
	yt := &seqFinder{answers: []*live.LiveStreamInfo{nil}}
	w := &Watcher{
		Finders:  map[live.Platform]live.LiveFinder{live.PlatformTwitch: tw, live.PlatformYouTube: yt},
		Channel:  testBuilder.Channel,
		Sender:   &recordSender{},
		Builder:  testBuilder,
		Interval: 2 * time.Minute,
		Now:      func() time.Time { return now },
	}

	start := now
	for now.Sub(start) < DefaultYouTubePollInterval {
		w.Check(context.Background())
		now = now.Add(2 * time.Minute)
	}
	if tw.i != 8 {
		t.Errorf("twitch lookups = %d, want 8", tw.i)
	}
	if yt.i != 1 {
		t.Errorf("youtube lookups within %v = %d, want 1", DefaultYouTubePollInterval, yt.i)
	}

	now = start.Add(DefaultYouTubePollInterval)
	w.Check(context.Background())
	if yt.i != 2 {
		t.Errorf("youtube lookups after interval = %d, want 2", yt.i)
	}
}
