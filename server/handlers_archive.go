package server

import (
	"net/http"

	"github.com/onnwee/streamportal/archive"
	"github.com/onnwee/streamportal/live"
	"github.com/onnwee/streamportal/stats"
)

type archiveItem struct {
	live.VideoInfo
	DurationText string `json:"duration"`
	ViewsText    string `json:"views_text"`
}

// HandleArchive lists past broadcasts: ?platform=&order=recent|popular&limit=.
func (h *Handlers) HandleArchive(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.deps.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}
	p, ok := platformQuery(r, live.PlatformYouTube)
	if !ok {
		writeError(w, http.StatusBadRequest, "platform must be twitch or youtube")
		return
	}
	order, ok := archive.ParseOrder(r.URL.Query().Get("order"))
	if !ok {
		writeError(w, http.StatusBadRequest, "order must be recent or popular")
		return
	}
	limit := archive.ClampLimit(parseIntQuery(r, "limit", archive.DefaultLimit))

	vids, err := h.deps.Archive.List(r.Context(), p, order, limit)
	if err != nil {
		failRequest(w, r, err)
		return
	}
	items := make([]archiveItem, 0, len(vids))
	for _, v := range vids {
		items = append(items, archiveItem{
			VideoInfo:    v,
			DurationText: archive.FormatDuration(v.Duration),
			ViewsText:    archive.FormatViews(v.Views),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"platform": p,
		"order":    order,
		"limit":    limit,
		"videos":   items,
	})
}

// HandleStats serves the statistics page data.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.deps.Stats == nil {
		writeJSON(w, http.StatusOK, stats.Summary{Status: stats.StatusComingSoon})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Stats.Summary(r.Context()))
}
