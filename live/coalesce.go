package live

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// CoalescingFinder shares one in-flight lookup between concurrent callers asking
// about the same channel. Results are not cached once the call returns.
type CoalescingFinder struct {
	Finder LiveFinder
	// Timeout bounds the shared call, which outlives any single caller's context.
	Timeout time.Duration

	group singleflight.Group
}

type freshKey struct{}

// FreshLookup marks ctx so a CoalescingFinder starts a new lookup rather than
// joining one that began earlier. Callers arriving afterwards join the new one.
func FreshLookup(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshKey{}, true)
}

func isFresh(ctx context.Context) bool {
	v, _ := ctx.Value(freshKey{}).(bool)
	return v
}

// FindLiveStream implements LiveFinder.
func (c *CoalescingFinder) FindLiveStream(ctx context.Context, channel ChannelRef) (*LiveStreamInfo, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultGatewayTimeout
	}
	key := channel.TwitchLogin + "\x00" + channel.YouTubeChannelID
	if isFresh(ctx) {
		c.group.Forget(key)
	}
	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return c.Finder.FindLiveStream(callCtx, channel)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		info, _ := res.Val.(*LiveStreamInfo)
		if info == nil {
			return nil, nil
		}
		cp := *info
		return &cp, nil
	}
}
