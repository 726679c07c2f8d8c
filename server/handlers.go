// Package server exposes the HTTP API handlers.
package server

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/streamportal/archive"
	"github.com/onnwee/streamportal/config"
	"github.com/onnwee/streamportal/notify"
	"github.com/onnwee/streamportal/screen"
	"github.com/onnwee/streamportal/stats"
)

// Deps are the services the handlers serve. Optional services may be nil and
// their endpoints answer accordingly.
type Deps struct {
	Config   *config.Config
	Screens  *screen.Registry
	Archive  *archive.Service
	Stats    *stats.Service
	Notifier notify.Sender
	Messages notify.Builder
	Redis    *redis.Client
}

func (d Deps) config() *config.Config {
	if d.Config != nil {
		return d.Config
	}
	return &config.Config{CORSPermissive: true}
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctx  context.Context
	deps Deps
	cfg  *config.Config
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// ctx outlives individual requests and bounds WebSocket sessions.
func NewHandlers(ctx context.Context, deps Deps) *Handlers {
	return &Handlers{ctx: ctx, deps: deps, cfg: deps.config()}
}
