// Command livecheck performs one live lookup per configured platform and prints
// the result as JSON, including the embed URLs a screen would show.
// It exits non-zero when any requested platform fails to resolve.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/streamportal/config"
	"github.com/onnwee/streamportal/embed"
	"github.com/onnwee/streamportal/live"
	"github.com/onnwee/streamportal/twitchapi"
	"github.com/onnwee/streamportal/youtubeapi"
)

type report struct {
	Platform  live.Platform `json:"platform"`
	Live      bool          `json:"live"`
	VideoID   string        `json:"video_id,omitempty"`
	Title     string        `json:"title,omitempty"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	Video     embed.View    `json:"video"`
	Chat      embed.View    `json:"chat"`
	Error     string        `json:"error,omitempty"`
}

func main() {
	var platform string
	flag.StringVar(&platform, "platform", "", "Platform to check [twitch, youtube]; empty checks both")
	flag.StringVar(&platform, "p", "", "Platform to check (short form)")

	var timeout time.Duration
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Per-lookup timeout")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  -p, --platform   Platform to check [twitch, youtube]\n")
		fmt.Fprintf(os.Stderr, "  --timeout        Per-lookup timeout (default 10s)\n")
	}
	flag.Parse()

	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	platforms := []live.Platform{live.PlatformTwitch, live.PlatformYouTube}
	if platform != "" {
		p, ok := live.ParsePlatform(platform)
		if !ok {
			flag.Usage()
			os.Exit(2)
		}
		platforms = []live.Platform{p}
	}

	ctx := context.Background()
	hc := &http.Client{Timeout: timeout}
	failed := false
	reports := make([]report, 0, len(platforms))
	for _, p := range platforms {
		finder, err := finderFor(ctx, cfg, p, hc)
		var rep report
		if err != nil {
			rep = report{Platform: p, Error: err.Error()}
		} else {
			rep = check(ctx, finder, cfg, p, timeout)
		}
		if rep.Error != "" {
			failed = true
		}
		reports = append(reports, rep)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	if failed {
		os.Exit(1)
	}
}

func finderFor(ctx context.Context, cfg *config.Config, p live.Platform, hc *http.Client) (live.LiveFinder, error) {
	switch p {
	case live.PlatformTwitch:
		if err := cfg.ValidateTwitch(); err != nil {
			return nil, err
		}
		return twitchapi.NewGateway(cfg.TwitchClientID, cfg.TwitchClientSecret, hc), nil
	default:
		if err := cfg.ValidateYouTube(); err != nil {
			return nil, err
		}
		yc, err := youtubeapi.New(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			return nil, err
		}
		return yc, nil
	}
}

// check runs one lookup. Video and chat views are rendered for the video the
// lookup found, so YouTube reports a disabled chat when nothing is live.
func check(ctx context.Context, finder live.LiveFinder, cfg *config.Config, p live.Platform, timeout time.Duration) report {
	rep := report{Platform: p}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	info, err := finder.FindLiveStream(ctx, cfg.Channel())
	if err != nil {
		rep.Error = err.Error()
	} else if info != nil && info.VideoID != "" {
		rep.Live = true
		rep.VideoID = info.VideoID
		rep.Title = info.Title
		if !info.StartedAt.IsZero() {
			t := info.StartedAt
			rep.StartedAt = &t
		}
	}

	req := embed.Request{Platform: p, Channel: cfg.Channel(), HostDomain: cfg.SiteHost}
	if p == live.PlatformYouTube {
		req.VideoID = rep.VideoID
	}
	req.Surface = live.SurfaceVideo
	rep.Video = embed.Render(req)
	req.Surface = live.SurfaceChat
	rep.Chat = embed.Render(req)
	return rep
}
