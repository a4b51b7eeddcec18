package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gacha"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	pullRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pull",
			Name:      "requests_total",
			Help:      "Pull requests by banner type and result.",
		},
		[]string{"banner_type", "result"},
	)

	pullDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pull",
			Name:      "duration_seconds",
			Help:      "Duration of pull requests, lock to commit.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"banner_type"},
	)

	draws = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pull",
			Name:      "draws_total",
			Help:      "Committed draws by banner type and rarity.",
		},
		[]string{"banner_type", "rarity"},
	)

	pityTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pull",
			Name:      "pity_triggers_total",
			Help:      "Draws taken under soft or hard pity.",
		},
		[]string{"banner_type", "kind"},
	)

	lockContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pull",
			Name:      "lock_contention_total",
			Help:      "Pull requests rejected because the player's pull lock was held.",
		},
	)

	ledgerTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Ledger transactions by kind and resulting status.",
		},
		[]string{"kind", "status"},
	)

	certification = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "certification",
			Name:      "within_tolerance",
			Help:      "1 if the last simulated run of a banner passed the chi-square test.",
		},
		[]string{"banner"},
	)

	certificationStat = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "certification",
			Name:      "chi_square",
			Help:      "Chi-square statistic of the last simulated run of a banner.",
		},
		[]string{"banner"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		pullRequests,
		pullDuration,
		draws,
		pityTriggers,
		lockContention,
		ledgerTransactions,
		certification,
		certificationStat,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
// Requests are labelled by chi route pattern so path parameters stay out of label values.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordPull records one pull request's result.
func RecordPull(bannerType, result string, duration time.Duration) {
	if bannerType == "" {
		bannerType = "unknown"
	}
	pullRequests.WithLabelValues(bannerType, result).Inc()
	if duration > 0 {
		pullDuration.WithLabelValues(bannerType).Observe(duration.Seconds())
	}
}

// RecordDraw records one committed draw.
func RecordDraw(bannerType, rarity string, softPity, hardPity bool) {
	draws.WithLabelValues(bannerType, rarity).Inc()
	switch {
	case hardPity:
		pityTriggers.WithLabelValues(bannerType, "hard").Inc()
	case softPity:
		pityTriggers.WithLabelValues(bannerType, "soft").Inc()
	}
}

// RecordLockContention counts a pull refused by the pull lock.
func RecordLockContention() {
	lockContention.Inc()
}

// RecordLedgerTransaction counts a ledger transaction reaching a status.
func RecordLedgerTransaction(kind, status string) {
	ledgerTransactions.WithLabelValues(kind, status).Inc()
}

// RecordCertification stores the last verdict for a banner.
func RecordCertification(banner string, chiSquare float64, withinTolerance bool) {
	v := 0.0
	if withinTolerance {
		v = 1
	}
	certification.WithLabelValues(banner).Set(v)
	certificationStat.WithLabelValues(banner).Set(chiSquare)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
