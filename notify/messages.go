package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/streamportal/live"
)

// Notification kinds.
const (
	KindTwitchLive  = "twitch_live"
	KindYouTubeLive = "youtube_live"
	KindNewVideo    = "new_video"
	KindScheduled   = "scheduled"
	KindTest        = "test"
)

// Builder renders announcements for one streamer.
type Builder struct {
	Name      string
	AvatarURL string
	SiteURL   string
	Channel   live.ChannelRef
	Now       func() time.Time
}

func (b Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b Builder) base(kind, content string, e Embed) Message {
	e.Timestamp = b.now().UTC().Format(time.RFC3339)
	if b.AvatarURL != "" {
		e.Thumbnail = &EmbedImage{URL: b.AvatarURL}
	}
	e.Footer = &EmbedFooter{Text: b.Name + " - official site", IconURL: b.AvatarURL}
	return Message{
		Kind:      kind,
		Username:  b.Name + " Bot",
		AvatarURL: b.AvatarURL,
		Content:   content,
		Embeds:    []Embed{e},
	}
}

func (b Builder) siteField() EmbedField {
	label := strings.TrimPrefix(strings.TrimPrefix(b.SiteURL, "https://"), "http://")
	return EmbedField{Name: "Watch on the site", Value: fmt.Sprintf("[%s](%s)", label, b.SiteURL), Inline: true}
}

func (b Builder) twitchURL() string {
	return "https://twitch.tv/" + b.Channel.TwitchLogin
}

func (b Builder) youtubeChannelURL() string {
	return "https://youtube.com/channel/" + b.Channel.YouTubeChannelID
}

// TwitchLive announces a Twitch broadcast.
func (b Builder) TwitchLive(info live.LiveStreamInfo) Message {
	game := info.GameName
	if game == "" {
		game = "-"
	}
	e := Embed{
		Title:       info.Title,
		URL:         b.twitchURL(),
		Color:       TwitchColor,
		Description: fmt.Sprintf("**%s** is streaming **%s** on Twitch!", b.Name, game),
		Author:      &EmbedAuthor{Name: b.Name + " on Twitch", URL: b.twitchURL(), IconURL: twitchIcon},
		Fields: []EmbedField{
			{Name: "Game", Value: game, Inline: true},
			{Name: "Viewers", Value: strconv.Itoa(info.ViewerCount), Inline: true},
			b.siteField(),
		},
	}
	if info.ThumbnailURL != "" {
		e.Image = &EmbedImage{URL: info.ThumbnailURL}
	}
	return b.base(KindTwitchLive, fmt.Sprintf("@everyone **%s is live on Twitch!**", b.Name), e)
}

// YouTubeLive announces a YouTube broadcast.
func (b Builder) YouTubeLive(info live.LiveStreamInfo) Message {
	e := Embed{
		Title:       info.Title,
		URL:         "https://youtube.com/watch?v=" + info.VideoID,
		Color:       YouTubeColor,
		Description: fmt.Sprintf("**%s** is streaming on YouTube!", b.Name),
		Author:      &EmbedAuthor{Name: b.Name + " on YouTube", URL: b.youtubeChannelURL(), IconURL: youtubeIcon},
		Fields: []EmbedField{
			{Name: "Platform", Value: "YouTube", Inline: true},
			b.siteField(),
		},
	}
	if info.ThumbnailURL != "" {
		e.Image = &EmbedImage{URL: info.ThumbnailURL}
	}
	return b.base(KindYouTubeLive, fmt.Sprintf("@everyone **%s is live on YouTube!**", b.Name), e)
}

// NewVideo announces an upload. The description is truncated to 200 characters.
func (b Builder) NewVideo(v live.VideoInfo, description string) Message {
	e := Embed{
		Title:       v.Title,
		URL:         v.URL,
		Color:       YouTubeColor,
		Description: Truncate(description),
		Author:      &EmbedAuthor{Name: b.Name + " on YouTube", URL: b.youtubeChannelURL(), IconURL: youtubeIcon},
	}
	if v.Platform == live.PlatformTwitch {
		e.Color = TwitchColor
		e.Author = &EmbedAuthor{Name: b.Name + " on Twitch", URL: b.twitchURL(), IconURL: twitchIcon}
	}
	if v.ThumbnailURL != "" {
		e.Image = &EmbedImage{URL: v.ThumbnailURL}
	}
	return b.base(KindNewVideo, fmt.Sprintf("**New video on %s's channel!**", b.Name), e)
}

// Scheduled announces a planned broadcast. game may be empty.
func (b Builder) Scheduled(p live.Platform, title string, at time.Time, game string) Message {
	name, url, icon, color := "YouTube", b.youtubeChannelURL(), youtubeIcon, YouTubeColor
	if p == live.PlatformTwitch {
		name, url, icon, color = "Twitch", b.twitchURL(), twitchIcon, TwitchColor
	}
	date := at.Format("Monday, 2 January 2006")
	clock := at.Format("15:04")

	what := ""
	if game != "" {
		what = " **" + game + "**"
	}
	fields := []EmbedField{
		{Name: "Date", Value: date, Inline: true},
		{Name: "Time", Value: clock, Inline: true},
		{Name: "Platform", Value: name, Inline: true},
	}
	if game != "" {
		fields = append(fields, EmbedField{Name: "Game", Value: game, Inline: true})
	}
	fields = append(fields, b.siteField())

	e := Embed{
		Title:       title,
		URL:         url,
		Color:       color,
		Description: fmt.Sprintf("**%s** will stream%s on %s!\n\nScheduled: **%s** at **%s**", b.Name, what, name, date, clock),
		Author:      &EmbedAuthor{Name: b.Name + " on " + name, URL: url, IconURL: icon},
		Fields:      fields,
	}
	return b.base(KindScheduled, fmt.Sprintf("**%s scheduled a stream on %s!**", b.Name, name), e)
}

// Test is a plain message used to verify the webhook.
func (b Builder) Test() Message {
	return Message{
		Kind:      KindTest,
		Username:  b.Name + " Bot",
		AvatarURL: b.AvatarURL,
		Content:   "Webhook test from " + b.SiteURL,
	}
}
