package server

import (
	"net/http"

	"github.com/onnwee/streamportal/embed"
	"github.com/onnwee/streamportal/live"
)

// HandleLive resolves the requested platform once and returns the screen state a
// new viewer would see. Clients without WebSocket support poll this.
func (h *Handlers) HandleLive(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.deps.Screens == nil {
		writeError(w, http.StatusServiceUnavailable, "screens not configured")
		return
	}
	p, ok := platformQuery(r, h.cfg.DefaultPlatform)
	if !ok {
		writeError(w, http.StatusBadRequest, "platform must be twitch or youtube")
		return
	}
	st, err := h.deps.Screens.Once(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, st)
}

// HandleEmbed renders one surface for a platform. A YouTube video id is only
// used when it comes from the resolver of an open screen (?screen=<id>); without
// one the YouTube video falls back to the channel's live stream and chat stays
// disabled.
func (h *Handlers) HandleEmbed(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	p, ok := platformQuery(r, h.cfg.DefaultPlatform)
	if !ok {
		writeError(w, http.StatusBadRequest, "platform must be twitch or youtube")
		return
	}
	surface := live.SurfaceVideo
	if v := q.Get("surface"); v != "" {
		if surface, ok = live.ParseSurface(v); !ok {
			writeError(w, http.StatusBadRequest, "surface must be video or chat")
			return
		}
	}
	var videoID string
	if id := q.Get("screen"); id != "" {
		if h.deps.Screens == nil {
			writeError(w, http.StatusServiceUnavailable, "screens not configured")
			return
		}
		sc, ok := h.deps.Screens.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "screen not found")
			return
		}
		if st := sc.State(); st.Platform == p {
			videoID = st.VideoID
		}
	}
	writeJSON(w, http.StatusOK, embed.Render(embed.Request{
		Platform:   p,
		Surface:    surface,
		VideoID:    videoID,
		Channel:    h.cfg.Channel(),
		HostDomain: h.cfg.SiteHost,
	}))
}
