package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics хранит метрики шлюза на изолированном реестре.
// Все методы допускают nil-получатель, чтобы компоненты работали без метрик.
type Metrics struct {
	registry *prometheus.Registry

	handshakes    *prometheus.CounterVec
	liveSessions  prometheus.Gauge
	chunkReads    *prometheus.CounterVec
	bytesStreamed prometheus.Counter
	activeStreams prometheus.Gauge
	cacheLookups  *prometheus.CounterVec
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.handshakes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_handshakes_total",
		Help:      "Session creations by endpoint and result.",
	}, []string{"dc", "result"})
	m.liveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_live",
		Help:      "Sessions currently held by the pool.",
	})
	m.chunkReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunk_reads_total",
		Help:      "Remote chunk reads by result.",
	}, []string{"result"})
	m.bytesStreamed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "streamed_bytes_total",
		Help:      "Bytes written to clients.",
	})
	m.activeStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "streams_active",
		Help:      "Downloads in progress.",
	})
	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "descriptor_cache_lookups_total",
		Help:      "Descriptor cache lookups by result.",
	}, []string{"result"})
	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})
	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.registry.MustRegister(
		m.handshakes, m.liveSessions, m.chunkReads, m.bytesStreamed,
		m.activeStreams, m.cacheLookups, m.requests, m.duration,
	)
	return m
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handshake(dc int, result string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(strconv.Itoa(dc), result).Inc()
}

func (m *Metrics) SessionsLive(n int) {
	if m == nil {
		return
	}
	m.liveSessions.Set(float64(n))
}

func (m *Metrics) ChunkRead(result string) {
	if m == nil {
		return
	}
	m.chunkReads.WithLabelValues(result).Inc()
}

func (m *Metrics) BytesStreamed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesStreamed.Add(float64(n))
}

func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

func (m *Metrics) StreamFinished() {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) observeRequest(route, method string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route).Observe(seconds)
}
