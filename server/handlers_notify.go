package server

import (
	"net/http"

	"github.com/onnwee/streamportal/telemetry"
)

// HandleNotifyTest sends a test message to the Discord webhook.
func (h *Handlers) HandleNotifyTest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if h.deps.Notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "DISCORD_WEBHOOK_URL not configured")
		return
	}
	if err := h.deps.Notifier.Send(r.Context(), h.deps.Messages.Test()); err != nil {
		failRequest(w, r, err)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("notify: test message sent")
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
