package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/streamportal/archive"
	"github.com/onnwee/streamportal/live"
	"github.com/onnwee/streamportal/telemetry"
)

// parseIntQuery extracts an int parameter from query string with a default value.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// platformQuery reads ?platform=, defaulting to def when absent.
func platformQuery(r *http.Request, def live.Platform) (live.Platform, bool) {
	v := r.URL.Query().Get("platform")
	if v == "" {
		return def, def != ""
	}
	return live.ParsePlatform(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps domain errors onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, live.ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, archive.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, live.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func failRequest(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	telemetry.LoggerWithCorr(r.Context()).Warn("request failed", slog.String("path", r.URL.Path), slog.Int("status", status), slog.Any("err", err))
	writeError(w, status, err.Error())
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
