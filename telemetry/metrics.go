// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes recorded by ObserveResolution.
const (
	OutcomeLive      = "live"
	OutcomeNotLive   = "not_live"
	OutcomeTransport = "transport_error"
	OutcomeTimeout   = "timeout"
	OutcomeConfig    = "config_missing"
)

var (
	once sync.Once

	// Counters
	Resolutions          *prometheus.CounterVec
	StaleDiscarded       prometheus.Counter
	NotificationsSent    *prometheus.CounterVec
	NotificationsFailed  *prometheus.CounterVec
	ArchiveCacheRequests *prometheus.CounterVec

	// Histograms (seconds)
	GatewayDuration *prometheus.HistogramVec

	// Gauges
	ActiveScreens prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamportal_resolutions_total", Help: "Live video id resolutions by outcome"}, []string{"outcome"})
		StaleDiscarded = promauto.NewCounter(prometheus.CounterOpts{Name: "streamportal_resolver_stale_discarded_total", Help: "Resolution results discarded because a later-started refresh was already applied"})
		NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamportal_notifications_sent_total", Help: "Discord notifications delivered"}, []string{"kind"})
		NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamportal_notifications_failed_total", Help: "Discord notifications that failed"}, []string{"kind"})
		ArchiveCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamportal_archive_cache_requests_total", Help: "Archive cache lookups by result"}, []string{"result"})
		GatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "streamportal_gateway_duration_seconds", Help: "Platform API call duration seconds", Buckets: prometheus.DefBuckets}, []string{"platform", "op"})
		ActiveScreens = promauto.NewGauge(prometheus.GaugeOpts{Name: "streamportal_active_screens", Help: "Viewer screens currently connected"})
	})
}

// ObserveResolution counts a resolver outcome.
func ObserveResolution(outcome string) {
	if Resolutions != nil {
		Resolutions.WithLabelValues(outcome).Inc()
	}
}

// IncStaleDiscarded counts a resolution dropped by sequence ordering.
func IncStaleDiscarded() {
	if StaleDiscarded != nil {
		StaleDiscarded.Inc()
	}
}

// ObserveNotification counts a notification delivery attempt.
func ObserveNotification(kind string, err error) {
	if err != nil {
		if NotificationsFailed != nil {
			NotificationsFailed.WithLabelValues(kind).Inc()
		}
		return
	}
	if NotificationsSent != nil {
		NotificationsSent.WithLabelValues(kind).Inc()
	}
}

// ObserveCache counts an archive cache lookup ("l1_hit", "l2_hit", "miss").
func ObserveCache(result string) {
	if ArchiveCacheRequests != nil {
		ArchiveCacheRequests.WithLabelValues(result).Inc()
	}
}

// SetActiveScreens records the number of connected viewer screens.
func SetActiveScreens(n int) {
	if ActiveScreens != nil {
		ActiveScreens.Set(float64(n))
	}
}

// GatewayObserver returns the duration observer for a platform call, or nil before Init.
func GatewayObserver(platform, op string) prometheus.Observer {
	if GatewayDuration == nil {
		return nil
	}
	return GatewayDuration.WithLabelValues(platform, op)
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
