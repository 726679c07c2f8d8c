package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/streamportal/telemetry"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultPollInterval     = 5 * time.Minute
	DefaultVisibilityMinAge = 60 * time.Second
	DefaultGatewayTimeout   = 10 * time.Second
)

// Options tunes a Resolver. Zero values fall back to the defaults above.
type Options struct {
	Platform         Platform
	PollInterval     time.Duration
	VisibilityMinAge time.Duration
	Timeout          time.Duration
	Now              func() time.Time
	Logger           *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Platform == "" {
		o.Platform = PlatformYouTube
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.VisibilityMinAge <= 0 {
		o.VisibilityMinAge = DefaultVisibilityMinAge
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultGatewayTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Snapshot is a consistent view of the resolver state.
type Snapshot struct {
	Resolution
	Loading bool `json:"loading"`
	Active  bool `json:"active"`
}

// Resolver keeps the best-known live video id for one channel on one screen.
type Resolver struct {
	finder  LiveFinder
	channel ChannelRef
	opts    Options
	log     *slog.Logger

	mu        sync.Mutex
	epoch     uint64
	nextSeq   uint64
	applied   uint64
	inflight  int
	current   Resolution
	active    bool
	hidden    bool
	runCtx    context.Context
	stopLoop  context.CancelFunc
	listeners []func(Snapshot)

	// notifyMu serializes listener calls so snapshots arrive in the order they were taken.
	notifyMu sync.Mutex
	wg       sync.WaitGroup
}

// NewResolver returns an inactive resolver. Call Start to begin a session.
func NewResolver(finder LiveFinder, channel ChannelRef, opts Options) *Resolver {
	opts = opts.withDefaults()
	return &Resolver{
		finder:  finder,
		channel: channel,
		opts:    opts,
		log:     opts.Logger.With(slog.String("component", "resolver"), slog.String("platform", string(opts.Platform))),
	}
}

// Resolve performs one lookup. It never returns an error: not-live, transport
// failures, timeouts and missing configuration all yield an empty Resolution.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	err := r.channel.Require(r.opts.Platform)
	if err == nil && r.finder == nil {
		err = fmt.Errorf("%w: no %s gateway", ErrConfigurationMissing, r.opts.Platform)
	}
	if err != nil {
		r.log.Warn("resolver: channel not configured", slog.Any("err", err))
		telemetry.ObserveResolution(telemetry.OutcomeConfig)
		return Resolution{LastResolvedAt: r.opts.Now()}
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	info, err := r.finder.FindLiveStream(ctx, r.channel)
	now := r.opts.Now()

	switch {
	case err == nil && info != nil && info.VideoID != "":
		telemetry.ObserveResolution(telemetry.OutcomeLive)
		return Resolution{VideoID: info.VideoID, Title: info.Title, StartedAt: info.StartedAt, Live: true, LastResolvedAt: now}
	case err == nil || errors.Is(err, ErrNotLive):
		telemetry.ObserveResolution(telemetry.OutcomeNotLive)
	case errors.Is(err, context.DeadlineExceeded):
		r.log.Warn("resolver: lookup timed out", slog.Duration("timeout", r.opts.Timeout))
		telemetry.ObserveResolution(telemetry.OutcomeTimeout)
	case errors.Is(err, context.Canceled):
		r.log.Debug("resolver: lookup canceled")
	case errors.Is(err, ErrConfigurationMissing):
		r.log.Warn("resolver: configuration missing", slog.Any("err", err))
		telemetry.ObserveResolution(telemetry.OutcomeConfig)
	default:
		r.log.Warn("resolver: lookup failed", slog.Any("err", err))
		telemetry.ObserveResolution(telemetry.OutcomeTransport)
	}
	return Resolution{LastResolvedAt: now}
}

// Refresh resolves immediately and applies the result unless a later-started
// refresh has already been applied or the resolver was stopped meanwhile.
// The lookup is marked with FreshLookup so it never reuses one started before
// the call. It returns the resolution in effect afterwards. On an inactive
// resolver it does nothing.
func (r *Resolver) Refresh(ctx context.Context) Resolution {
	return r.refresh(FreshLookup(ctx))
}

// refresh is Refresh without forcing a fresh lookup. Scheduled polls use it so
// they may share an in-flight lookup with other screens.
func (r *Resolver) refresh(ctx context.Context) Resolution {
	r.mu.Lock()
	if !r.active {
		cur := r.current
		r.mu.Unlock()
		return cur
	}
	r.nextSeq++
	seq, epoch := r.nextSeq, r.epoch
	r.inflight++
	r.mu.Unlock()
	r.notify()

	res := r.Resolve(ctx)
	res.Seq = seq

	r.mu.Lock()
	if epoch != r.epoch {
		cur := r.current
		r.mu.Unlock()
		r.log.Debug("resolver: result ignored after stop", slog.Uint64("seq", seq))
		return cur
	}
	r.inflight--
	if seq <= r.applied {
		cur := r.current
		applied := r.applied
		r.mu.Unlock()
		telemetry.IncStaleDiscarded()
		r.log.Debug("resolver: stale result discarded", slog.Uint64("seq", seq), slog.Uint64("applied", applied))
		r.notify()
		return cur
	}
	r.applied = seq
	r.current = res
	r.mu.Unlock()
	r.notify()
	return res
}

// Start begins a new session with an empty resolution and starts the polling
// goroutine. It is a no-op on an already active resolver.
func (r *Resolver) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return
	}
	r.active = true
	r.epoch++
	r.inflight = 0
	r.current = Resolution{}
	r.runCtx, r.stopLoop = context.WithCancel(ctx)
	go r.loop(r.runCtx, r.opts.PollInterval)
}

// Stop ends the session: the schedule stops, the resolution is cleared and any
// in-flight lookup is cancelled and its result ignored. Stop does not wait.
func (r *Resolver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.active = false
	r.epoch++
	r.inflight = 0
	r.current = Resolution{}
	if r.stopLoop != nil {
		r.stopLoop()
		r.stopLoop = nil
	}
}

// RefreshNow starts a refresh in the background.
func (r *Resolver) RefreshNow() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	ctx := r.runCtx
	r.wg.Add(1)
	r.mu.Unlock()
	go func() {
		defer r.wg.Done()
		r.Refresh(ctx)
	}()
}

// VisibilityChanged records page visibility. A hidden-to-visible transition
// refreshes when the last resolution is at least VisibilityMinAge old.
func (r *Resolver) VisibilityChanged(visible bool) {
	r.mu.Lock()
	wasHidden := r.hidden
	r.hidden = !visible
	trigger := false
	if visible && wasHidden && r.active {
		last := r.current.LastResolvedAt
		trigger = last.IsZero() || r.opts.Now().Sub(last) >= r.opts.VisibilityMinAge
	}
	r.mu.Unlock()
	if trigger {
		r.log.Debug("resolver: visibility refresh")
		r.RefreshNow()
	}
}

// Snapshot returns the current state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// OnChange registers fn to be called after every state change. Calls are serialized.
func (r *Resolver) OnChange(fn func(Snapshot)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Wait blocks until background refreshes started by RefreshNow have returned.
func (r *Resolver) Wait() { r.wg.Wait() }

func (r *Resolver) snapshotLocked() Snapshot {
	return Snapshot{Resolution: r.current, Loading: r.active && r.inflight > 0, Active: r.active}
}

func (r *Resolver) notify() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.mu.Lock()
	snap := r.snapshotLocked()
	listeners := append([]func(Snapshot){}, r.listeners...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func (r *Resolver) loop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	r.log.Debug("resolver: poller started", slog.Duration("interval", every))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}
