package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/streamportal/live"
	"github.com/onnwee/streamportal/twitchapi"
	"github.com/onnwee/streamportal/youtubeapi"
)

type fakeYouTube struct {
	ch  *youtubeapi.Channel
	err error
}

func (f fakeYouTube) GetChannel(context.Context, live.ChannelRef) (*youtubeapi.Channel, error) {
	return f.ch, f.err
}

type fakeTwitch struct {
	user     *twitchapi.User
	userErr  error
	clips    []twitchapi.Clip
	clipsErr error

	gotWindow time.Duration
	gotLimit  int
}

func (f *fakeTwitch) User(context.Context, live.ChannelRef) (*twitchapi.User, error) {
	return f.user, f.userErr
}

func (f *fakeTwitch) TopClips(_ context.Context, _ live.ChannelRef, window time.Duration, limit int) ([]twitchapi.Clip, error) {
	f.gotWindow, f.gotLimit = window, limit
	return f.clips, f.clipsErr
}

var both = live.ChannelRef{TwitchLogin: "streamer", YouTubeChannelID: "UCabc"}

func TestSummaryComingSoon(t *testing.T) {
	tests := []struct {
		name string
		svc  Service
	}{
		{"no sources", Service{Channel: both}},
		{"sources without channel ids", Service{YouTube: fakeYouTube{}, Twitch: &fakeTwitch{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.svc.Summary(context.Background())
			if got.Status != StatusComingSoon || got.YouTube != nil || got.Twitch != nil {
				t.Errorf("Summary() = %+v, want coming_soon only", got)
			}
		})
	}
}

func TestSummaryBothHalves(t *testing.T) {
	tw := &fakeTwitch{
		user:  &twitchapi.User{ID: "1", Login: "streamer", DisplayName: "Streamer"},
		clips: []twitchapi.Clip{{ID: "c1", Title: "clip"}},
	}
	svc := Service{
		YouTube: fakeYouTube{ch: &youtubeapi.Channel{ID: "UCabc", Subscribers: 1200}},
		Twitch:  tw,
		Channel: both,
	}
	got := svc.Summary(context.Background())
	if got.Status != StatusOK {
		t.Fatalf("Status = %q, want ok", got.Status)
	}
	if got.YouTube == nil || got.YouTube.Subscribers != 1200 {
		t.Errorf("YouTube = %+v", got.YouTube)
	}
	if got.Twitch == nil || got.Twitch.DisplayName != "Streamer" || len(got.Twitch.Clips) != 1 {
		t.Errorf("Twitch = %+v", got.Twitch)
	}
	if tw.gotWindow != defaultClipWindow || tw.gotLimit != defaultClipLimit {
		t.Errorf("clip query = %v/%d, want defaults", tw.gotWindow, tw.gotLimit)
	}
}

func TestSummaryPartial(t *testing.T) {
	t.Run("youtube fails", func(t *testing.T) {
		svc := Service{
			YouTube: fakeYouTube{err: live.ErrTransport},
			Twitch:  &fakeTwitch{user: &twitchapi.User{Login: "streamer"}},
			Channel: both,
		}
		got := svc.Summary(context.Background())
		if got.Status != StatusPartial || got.YouTube != nil || got.Twitch == nil {
			t.Errorf("Summary() = %+v", got)
		}
	})
	t.Run("only youtube configured", func(t *testing.T) {
		svc := Service{
			YouTube: fakeYouTube{ch: &youtubeapi.Channel{ID: "UCabc"}},
			Channel: live.ChannelRef{YouTubeChannelID: "UCabc"},
		}
		got := svc.Summary(context.Background())
		if got.Status != StatusPartial || got.YouTube == nil {
			t.Errorf("Summary() = %+v", got)
		}
	})
	t.Run("clips failure keeps profile", func(t *testing.T) {
		svc := Service{
			Twitch:  &fakeTwitch{user: &twitchapi.User{Login: "streamer"}, clipsErr: errors.New("boom")},
			Channel: both,
		}
		got := svc.Summary(context.Background())
		if got.Twitch == nil || got.Twitch.Clips == nil || len(got.Twitch.Clips) != 0 {
			t.Errorf("Twitch = %+v, want profile with empty clips", got.Twitch)
		}
	})
}
