package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/streamportal/embed"
	"github.com/onnwee/streamportal/live"
	"github.com/onnwee/streamportal/screen"
	"github.com/onnwee/streamportal/telemetry"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 4096
)

// Client to server message types.
const (
	msgPlatform   = "platform"
	msgVisibility = "visibility"
	msgRefresh    = "refresh"
	msgOpenChat   = "open_chat"
)

type wsIncoming struct {
	Type     string `json:"type"`
	Platform string `json:"platform,omitempty"`
	Visible  *bool  `json:"visible,omitempty"`
}

type wsOutgoing struct {
	Type    string        `json:"type"`
	State   *screen.State `json:"state,omitempty"`
	URL     string        `json:"url,omitempty"`
	Width   int           `json:"width,omitempty"`
	Height  int           `json:"height,omitempty"`
	Name    string        `json:"name,omitempty"`
	Message string        `json:"message,omitempty"`
}

// wsClient serializes writes; gorilla connections allow one concurrent writer.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (h *Handlers) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || h.cfg.CORSPermissive || isOriginAllowed(origin, h.cfg.CORSAllowedOrigins) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// HandleScreenWS binds one screen controller to the connection. The client sends
// platform, visibility, refresh and open_chat messages; the server pushes the
// full state after every change. Closing the socket closes the screen.
func (h *Handlers) HandleScreenWS(w http.ResponseWriter, r *http.Request) {
	if h.deps.Screens == nil {
		writeError(w, http.StatusServiceUnavailable, "screens not configured")
		return
	}
	var initial live.Platform
	if v := r.URL.Query().Get("platform"); v != "" {
		p, ok := live.ParsePlatform(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "platform must be twitch or youtube")
			return
		}
		initial = p
	}

	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Debug("ws: upgrade failed", slog.Any("err", err))
		return
	}
	log := telemetry.LoggerWithCorr(r.Context())

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	client := &wsClient{conn: conn}

	sc := h.deps.Screens.Open(ctx)
	log = log.With(slog.String("screen", sc.ID()))
	log.Debug("ws: screen opened", slog.String("remote_addr", r.RemoteAddr))

	// Only the newest state matters; bursts collapse into one write.
	var (
		latestMu sync.Mutex
		latest   *screen.State
		wake     = make(chan struct{}, 1)
	)
	unsubscribe := sc.Subscribe(func(st screen.State) {
		latestMu.Lock()
		latest = &st
		latestMu.Unlock()
		select {
		case wake <- struct{}{}:
		default:
		}
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
				latestMu.Lock()
				st := latest
				latest = nil
				latestMu.Unlock()
				if st == nil {
					continue
				}
				if err := client.writeJSON(wsOutgoing{Type: "state", State: st}); err != nil {
					cancel()
					return
				}
			case <-ticker.C:
				if err := client.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	defer func() {
		unsubscribe()
		sc.Close()
		cancel()
		<-writerDone
		_ = conn.Close()
		log.Debug("ws: screen closed")
	}()

	// Unblock the read loop on server shutdown.
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	if initial != "" && initial != sc.Platform() {
		_ = sc.SetPlatform(initial)
	} else {
		sc.Publish()
	}

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				log.Debug("ws: read error", slog.Any("err", err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if reply := h.dispatchScreen(sc, data); reply != nil {
			if err := client.writeJSON(reply); err != nil {
				return
			}
		}
	}
}

// dispatchScreen applies one client message and returns a direct reply, if any.
func (h *Handlers) dispatchScreen(sc *screen.Controller, data []byte) *wsOutgoing {
	var in wsIncoming
	if err := json.Unmarshal(data, &in); err != nil {
		return &wsOutgoing{Type: "error", Message: "invalid message"}
	}
	switch in.Type {
	case msgPlatform:
		p, ok := live.ParsePlatform(in.Platform)
		if !ok {
			return &wsOutgoing{Type: "error", Message: "platform must be twitch or youtube"}
		}
		if err := sc.SetPlatform(p); err != nil {
			return &wsOutgoing{Type: "error", Message: err.Error()}
		}
	case msgVisibility:
		if in.Visible == nil {
			return &wsOutgoing{Type: "error", Message: "visibility requires visible"}
		}
		sc.VisibilityChanged(*in.Visible)
	case msgRefresh:
		sc.Refresh()
	case msgOpenChat:
		spec, err := sc.OpenYouTubeChat()
		if err != nil {
			msg := err.Error()
			if errors.Is(err, live.ErrEmbedRestricted) {
				msg = embed.MsgChatNotStarted
			}
			return &wsOutgoing{Type: "error", Message: msg}
		}
		return &wsOutgoing{Type: "popup", URL: spec.URL, Width: spec.Width, Height: spec.Height, Name: spec.Name}
	default:
		return &wsOutgoing{Type: "error", Message: "unknown message type"}
	}
	return nil
}
