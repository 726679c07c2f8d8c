// Package embed turns a platform, a surface and the resolved video id into
// embeddable URLs or a fallback directive. Rendering never fails: anything
// that cannot be built becomes a disabled view with a message.
package embed

import (
	"net/url"
	"strings"

	"github.com/onnwee/streamportal/live"
)

// Mode tells the client how to present a surface.
type Mode string

const (
	// ModeInline renders URL in an iframe.
	ModeInline Mode = "inline"
	// ModePopup offers a call-to-action that opens PopupURL in a separate window.
	// URL may still carry a best-effort inline frame.
	ModePopup Mode = "popup"
	// ModeDisabled shows Message instead of any frame.
	ModeDisabled Mode = "disabled"
)

// Messages shown for disabled surfaces.
const (
	MsgChatNotStarted     = "chat available once the stream starts"
	MsgTwitchNotSet       = "twitch channel is not configured"
	MsgYouTubeNotSet      = "youtube channel is not configured"
	MsgHostNotSet         = "site host is not configured"
	MsgUnsupportedSurface = "unsupported platform or surface"
)

// Popup window proportions for reading chat.
const (
	PopupWidth  = 400
	PopupHeight = 700
	PopupName   = "youtube-chat"
)

// PopupSpec describes the window the client opens for pop-out chat.
type PopupSpec struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// Request is everything needed to render one surface.
type Request struct {
	Platform   live.Platform
	Surface    live.Surface
	VideoID    string
	Channel    live.ChannelRef
	HostDomain string
}

// View is the render result.
type View struct {
	Platform live.Platform `json:"platform"`
	Surface  live.Surface  `json:"surface"`
	Mode     Mode          `json:"mode"`
	URL      string        `json:"url,omitempty"`
	PopupURL string        `json:"popup_url,omitempty"`
	Message  string        `json:"message,omitempty"`
	Popup    *PopupSpec    `json:"popup,omitempty"`
}

// Render builds the view for req.
func Render(req Request) View {
	v := View{Platform: req.Platform, Surface: req.Surface}
	host := HostDomain(req.HostDomain)
	login := strings.TrimSpace(req.Channel.TwitchLogin)
	channelID := strings.TrimSpace(req.Channel.YouTubeChannelID)
	videoID := strings.TrimSpace(req.VideoID)

	switch {
	case req.Platform == live.PlatformTwitch && req.Surface == live.SurfaceVideo:
		if msg := twitchMissing(login, host); msg != "" {
			return disabled(v, msg)
		}
		v.Mode = ModeInline
		v.URL = TwitchPlayerURL(login, host)

	case req.Platform == live.PlatformTwitch && req.Surface == live.SurfaceChat:
		if msg := twitchMissing(login, host); msg != "" {
			return disabled(v, msg)
		}
		v.Mode = ModeInline
		v.URL = TwitchChatURL(login, host)
		v.PopupURL = TwitchPopoutChatURL(login)

	case req.Platform == live.PlatformYouTube && req.Surface == live.SurfaceVideo:
		switch {
		case videoID != "":
			v.URL = YouTubeVideoURL(videoID)
		case channelID != "":
			v.URL = YouTubeLiveStreamURL(channelID)
		default:
			return disabled(v, MsgYouTubeNotSet)
		}
		v.Mode = ModeInline

	case req.Platform == live.PlatformYouTube && req.Surface == live.SurfaceChat:
		if videoID == "" {
			return disabled(v, MsgChatNotStarted)
		}
		spec := NewPopupSpec(videoID)
		v.Mode = ModePopup
		v.PopupURL = spec.URL
		v.Popup = &spec
		if host != "" {
			v.URL = YouTubeChatURL(videoID, host)
		}

	default:
		return disabled(v, MsgUnsupportedSurface)
	}
	return v
}

// NewPopupSpec returns the pop-out chat window for a YouTube broadcast.
func NewPopupSpec(videoID string) PopupSpec {
	return PopupSpec{URL: YouTubePopoutChatURL(videoID), Width: PopupWidth, Height: PopupHeight, Name: PopupName}
}

func twitchMissing(login, host string) string {
	if login == "" {
		return MsgTwitchNotSet
	}
	if host == "" {
		return MsgHostNotSet
	}
	return ""
}

func disabled(v View, msg string) View {
	v.Mode = ModeDisabled
	v.Message = msg
	return v
}

// HostDomain applies the parenting rule: no scheme, path, port or trailing
// dot, no leading "www.", lower case. It returns "" when nothing usable remains.
func HostDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if s == "" {
		return ""
	}
	u, err := url.Parse("//" + s)
	if err != nil {
		return ""
	}
	h := strings.TrimSuffix(u.Hostname(), ".")
	return strings.TrimPrefix(h, "www.")
}

// TwitchPlayerURL is the inline Twitch player for a channel.
func TwitchPlayerURL(login, host string) string {
	return "https://player.twitch.tv/?channel=" + url.QueryEscape(login) + "&parent=" + url.QueryEscape(host)
}

// TwitchChatURL is the inline Twitch chat for a channel.
func TwitchChatURL(login, host string) string {
	return "https://www.twitch.tv/embed/" + url.PathEscape(login) + "/chat?parent=" + url.QueryEscape(host)
}

// TwitchPopoutChatURL is the stand-alone Twitch chat window.
func TwitchPopoutChatURL(login string) string {
	return "https://www.twitch.tv/popout/" + url.PathEscape(login) + "/chat?popout="
}

// YouTubeVideoURL embeds a specific broadcast.
func YouTubeVideoURL(videoID string) string {
	return "https://www.youtube.com/embed/" + url.PathEscape(videoID)
}

// YouTubeLiveStreamURL embeds whatever the channel is broadcasting, resolved by YouTube.
func YouTubeLiveStreamURL(channelID string) string {
	return "https://www.youtube.com/embed/live_stream?channel=" + url.QueryEscape(channelID)
}

// YouTubeChatURL is the inline YouTube chat frame. Inline rendering is unreliable.
func YouTubeChatURL(videoID, host string) string {
	return "https://www.youtube.com/live_chat?v=" + url.QueryEscape(videoID) + "&embed_domain=" + url.QueryEscape(host)
}

// YouTubePopoutChatURL is the pop-out YouTube chat.
func YouTubePopoutChatURL(videoID string) string {
	return "https://www.youtube.com/live_chat?is_popout=1&v=" + url.QueryEscape(videoID)
}
