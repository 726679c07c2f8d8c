// Package screen holds the per-viewer controller: the active platform, the
// YouTube live resolver and the two embed views derived from them.
package screen

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/streamportal/embed"
	"github.com/onnwee/streamportal/live"
)

// Status values reported in State.
const (
	StatusTwitch   = "twitch"
	StatusChecking = "checking"
	StatusLive     = "live"
	StatusNotLive  = "not_live"
)

// MsgNotLive is shown when the YouTube channel has no current broadcast.
const MsgNotLive = "not currently live"

// Deps configures controllers.
type Deps struct {
	Finder          live.LiveFinder
	Channel         live.ChannelRef
	HostDomain      string
	DefaultPlatform live.Platform
	Resolver        live.Options
	Logger          *slog.Logger
}

// State is everything a viewer screen renders. Video and Chat are derived
// from the same snapshot so they always agree on platform and video id.
type State struct {
	ID          string          `json:"id"`
	Platform    live.Platform   `json:"platform"`
	Status      string          `json:"status"`
	Loading     bool            `json:"loading"`
	Live        bool            `json:"live"`
	VideoID     string          `json:"video_id,omitempty"`
	Title       string          `json:"title,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	LastChecked *time.Time      `json:"last_checked,omitempty"`
	Message     string          `json:"message,omitempty"`
	ChatState   embed.ChatState `json:"chat_state,omitempty"`
	Video       embed.View      `json:"video"`
	Chat        embed.View      `json:"chat"`
}

// Controller owns one screen's platform and resolver. Children read State and
// change it only through the mutators.
type Controller struct {
	id       string
	deps     Deps
	ctx      context.Context
	resolver *live.Resolver
	chat     *embed.ChatMachine
	log      *slog.Logger
	onClose  func(id string)

	mu       sync.Mutex
	platform live.Platform
	closed   bool
	nextSub  int
	subs     map[int]func(State)

	// emitMu keeps subscriber deliveries in the order states were computed.
	emitMu sync.Mutex
}

// New creates a controller on the default platform. ctx bounds background work.
func New(ctx context.Context, deps Deps) *Controller {
	if deps.DefaultPlatform == "" {
		deps.DefaultPlatform = live.PlatformTwitch
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	opts := deps.Resolver
	opts.Platform = live.PlatformYouTube
	opts.Logger = logger.With(slog.String("screen", id))

	c := &Controller{
		id:       id,
		deps:     deps,
		ctx:      ctx,
		resolver: live.NewResolver(deps.Finder, deps.Channel, opts),
		chat:     embed.NewChatMachine(),
		log:      logger.With(slog.String("screen", id)),
		platform: deps.DefaultPlatform,
		subs:     make(map[int]func(State)),
	}
	c.resolver.OnChange(c.onResolution)
	if c.platform == live.PlatformYouTube {
		c.resolver.Start(ctx)
		c.resolver.RefreshNow()
	}
	return c
}

// Once returns the state a fresh screen on p would settle on after one
// synchronous resolution. No background work outlives the call.
func Once(ctx context.Context, deps Deps, p live.Platform) (State, error) {
	if p != live.PlatformTwitch && p != live.PlatformYouTube {
		return State{}, fmt.Errorf("unknown platform %q", p)
	}
	deps.DefaultPlatform = live.PlatformTwitch
	c := New(ctx, deps)
	defer c.Close()
	if p == live.PlatformYouTube {
		c.mu.Lock()
		c.platform = p
		c.resolver.Start(ctx)
		c.mu.Unlock()
	}
	return c.Sync(ctx), nil
}

// ID identifies the screen.
func (c *Controller) ID() string { return c.id }

// Platform returns the active platform.
func (c *Controller) Platform() live.Platform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.platform
}

// SetPlatform switches both surfaces. Switching to YouTube starts a fresh
// resolver session and refreshes eagerly; switching away stops it and clears
// the video id.
func (c *Controller) SetPlatform(p live.Platform) error {
	if p != live.PlatformTwitch && p != live.PlatformYouTube {
		return fmt.Errorf("unknown platform %q", p)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.platform == p {
		c.mu.Unlock()
		return nil
	}
	c.platform = p
	c.chat.PlatformSwitched()
	switch p {
	case live.PlatformYouTube:
		c.resolver.Start(c.ctx)
		c.resolver.RefreshNow()
	case live.PlatformTwitch:
		c.resolver.Stop()
	}
	c.mu.Unlock()
	c.log.Debug("screen: platform switched", slog.String("platform", string(p)))
	c.emit()
	return nil
}

// Refresh re-resolves in the background when YouTube is active.
func (c *Controller) Refresh() {
	if c.Platform() == live.PlatformYouTube {
		c.resolver.RefreshNow()
	}
}

// Sync resolves synchronously (YouTube only) and returns the resulting state.
func (c *Controller) Sync(ctx context.Context) State {
	if c.Platform() == live.PlatformYouTube {
		c.resolver.Refresh(ctx)
	}
	return c.State()
}

// VisibilityChanged forwards page visibility to the resolver.
func (c *Controller) VisibilityChanged(visible bool) {
	c.resolver.VisibilityChanged(visible)
}

// OpenYouTubeChat returns the popup window to open. It fails with an error
// wrapping live.ErrEmbedRestricted when no broadcast id is known.
func (c *Controller) OpenYouTubeChat() (embed.PopupSpec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.platform != live.PlatformYouTube {
		return embed.PopupSpec{}, fmt.Errorf("%w: youtube is not the active platform", live.ErrEmbedRestricted)
	}
	c.syncChatLocked(c.resolver.Snapshot())
	return c.chat.OpenPopup()
}

// State returns the current screen state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Subscribe registers fn for every state change and returns an unsubscribe func.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Publish delivers the current state to subscribers.
func (c *Controller) Publish() { c.emit() }

// Close stops background work. The controller is unusable afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.resolver.Stop()
	c.subs = map[int]func(State){}
	onClose := c.onClose
	c.mu.Unlock()
	if onClose != nil {
		onClose(c.id)
	}
}

// Wait blocks until background refreshes have returned. Used on shutdown and in tests.
func (c *Controller) Wait() { c.resolver.Wait() }

// onResolution re-reads the resolver rather than trusting snap, which may have
// been taken before a platform switch.
func (c *Controller) onResolution(live.Snapshot) {
	c.mu.Lock()
	if c.closed || c.platform != live.PlatformYouTube {
		c.mu.Unlock()
		return
	}
	c.syncChatLocked(c.resolver.Snapshot())
	c.mu.Unlock()
	c.emit()
}

func (c *Controller) syncChatLocked(snap live.Snapshot) {
	if snap.HasVideo() {
		c.chat.Resolved(snap.VideoID)
		return
	}
	c.chat.Lost()
}

func (c *Controller) emit() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	st := c.stateLocked()
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

func (c *Controller) stateLocked() State {
	st := State{ID: c.id, Platform: c.platform}
	var videoID string
	switch c.platform {
	case live.PlatformYouTube:
		snap := c.resolver.Snapshot()
		c.syncChatLocked(snap)
		st.Loading = snap.Loading
		st.ChatState = c.chat.State()
		if !snap.LastResolvedAt.IsZero() {
			t := snap.LastResolvedAt
			st.LastChecked = &t
		}
		switch {
		case snap.HasVideo():
			videoID = snap.VideoID
			st.Status = StatusLive
			st.Live = true
			st.VideoID = snap.VideoID
			st.Title = snap.Title
			if !snap.StartedAt.IsZero() {
				t := snap.StartedAt
				st.StartedAt = &t
			}
		case snap.LastResolvedAt.IsZero():
			st.Status = StatusChecking
		default:
			st.Status = StatusNotLive
			st.Message = MsgNotLive
		}
	default:
		st.Status = StatusTwitch
	}
	req := embed.Request{Platform: c.platform, VideoID: videoID, Channel: c.deps.Channel, HostDomain: c.deps.HostDomain}
	req.Surface = live.SurfaceVideo
	st.Video = embed.Render(req)
	req.Surface = live.SurfaceChat
	st.Chat = embed.Render(req)
	return st
}
