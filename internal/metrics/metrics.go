package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsched_api_requests_total",
		Help: "Backend requests by endpoint and status",
	}, []string{"method", "endpoint", "status"})
	APIDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tweetsched_api_request_duration_seconds",
		Help:    "Backend request duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	ForcedLogouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweetsched_forced_logouts_total",
		Help: "Sessions cleared because the backend answered 401",
	})
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsched_cache_lookups_total",
		Help: "Query cache lookups by key and result",
	}, []string{"key", "result"})
	CacheInvalidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsched_cache_invalidations_total",
		Help: "Query cache invalidations by key and reason",
	}, []string{"key", "reason"})
	RealtimeEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsched_realtime_events_total",
		Help: "Push channel events received",
	}, []string{"event"})
	OptimisticOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsched_optimistic_outcomes_total",
		Help: "Calendar reschedule intents by final phase",
	}, []string{"phase"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsched_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsched_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(APIRequests, APIDuration, ForcedLogouts, CacheLookups,
		CacheInvalidations, RealtimeEvents, OptimisticOutcomes, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
// It returns the server so callers can shut it down, or nil when disabled.
func StartServer(addr string) *http.Server {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// ObserveAPI records one finished backend request.
func ObserveAPI(method, endpoint, status string, start time.Time) {
	APIRequests.WithLabelValues(method, endpoint, status).Inc()
	APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func IncForcedLogout()                     { ForcedLogouts.Inc() }
func IncCacheHit(key string)               { CacheLookups.WithLabelValues(key, "hit").Inc() }
func IncCacheMiss(key string)              { CacheLookups.WithLabelValues(key, "miss").Inc() }
func IncInvalidation(key, reason string)   { CacheInvalidations.WithLabelValues(key, reason).Inc() }
func IncRealtimeEvent(event string)        { RealtimeEvents.WithLabelValues(event).Inc() }
func IncOptimisticOutcome(phase string)    { OptimisticOutcomes.WithLabelValues(phase).Inc() }
func IncCommandRun(cmd string)             { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string)           { CommandErrors.WithLabelValues(cmd).Inc() }
