package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeshare",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codeshare",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codeshare",
		Name:      "active_rooms",
		Help:      "Number of rooms with at least one participant",
	})

	participants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codeshare",
		Name:      "participants",
		Help:      "Number of connected participants across all rooms",
	})

	editsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codeshare",
		Name:      "edits_applied_total",
		Help:      "Total number of accepted edit submissions",
	})

	broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codeshare",
		Name:      "broadcast_events_total",
		Help:      "Total number of events fanned out to participants",
	})

	writeThroughFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codeshare",
		Name:      "write_through_failures_total",
		Help:      "Persistence writes that failed after the in-memory apply",
	})
)

func RoomOpened()         { activeRooms.Inc() }
func RoomRetired()        { activeRooms.Dec() }
func ParticipantJoined()  { participants.Inc() }
func ParticipantLeft()    { participants.Dec() }
func EditApplied()        { editsApplied.Inc() }
func EventDelivered()     { broadcasts.Inc() }
func WriteThroughFailed() { writeThroughFailures.Inc() }

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps the websocket upgrade working behind the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request count and latency per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
