// Package metrics constructs the metrics the application will track.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
)

const namespace = "virtualnode"

// Metrics represents the set of metrics we gather. The collectors are held
// in their own registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   prometheus.Counter
	panics   prometheus.Counter
	rpcCalls *prometheus.CounterVec
}

// New constructs the metrics, including the go runtime and process
// collectors.
func New() *Metrics {
	m := Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of HTTP requests that ended in an error.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_total",
			Help:      "Total number of recovered panics.",
		}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Total number of RPC calls by method and result code.",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.errors,
		m.panics,
		m.rpcCalls,
	)

	return &m
}

// Handler returns the http handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, took time.Duration, failed bool) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(took.Seconds())
	if failed {
		m.errors.Inc()
	}
}

// ObserveCall records one RPC call. A zero code is a successful call.
func (m *Metrics) ObserveCall(method string, code int) {
	m.rpcCalls.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// AddPanic increments the panics metric by 1.
func (m *Metrics) AddPanic() {
	m.panics.Inc()
}

// /////////////////////////////////////////////////////////////////

// StatusSource provides the replay status that is exported.
type StatusSource interface {
	ReplayStatus() state.ReplayStatus
	Status() state.Status
}

// RegisterReplay exports the replay counters of the source. The values are
// read when the metrics are scraped.
func (m *Metrics) RegisterReplay(src StatusSource) {
	gauge := func(name, help string, f func(state.ReplayStatus) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      name,
			Help:      help,
		}, func() float64 { return f(src.ReplayStatus()) })
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_status",
			Help:      "Lifecycle of the published state: 0 uninitialized, 1 replaying, 2 ready.",
		}, func() float64 { return float64(src.Status()) }),
		gauge("current_block", "Block number the replay has reached.", func(s state.ReplayStatus) float64 { return float64(s.Current) }),
		gauge("total_blocks", "Number of index slots being replayed.", func(s state.ReplayStatus) float64 { return float64(s.TotalBlocks) }),
		gauge("processed_blocks", "Blocks decoded and applied.", func(s state.ReplayStatus) float64 { return float64(s.Processed) }),
		gauge("empty_slots", "Index slots without a block.", func(s state.ReplayStatus) float64 { return float64(s.Empty) }),
		gauge("partial_blocks", "Blocks decoded up to an unknown operation.", func(s state.ReplayStatus) float64 { return float64(s.Partial) }),
		gauge("corrupt_blocks", "Blocks that could not be read or decoded.", func(s state.ReplayStatus) float64 { return float64(s.Corrupt) }),
		gauge("reloads", "Completed replay passes.", func(s state.ReplayStatus) float64 { return float64(s.Reloads) }),
		gauge("duration_seconds", "Duration of the last replay pass.", func(s state.ReplayStatus) float64 { return s.Duration.Seconds() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "operations_accepted",
			Help:      "Operations applied to the ledger.",
		}, func() float64 { return float64(src.ReplayStatus().Operations.Accepted) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "operations_rejected",
			Help:      "Operations rejected by the ledger.",
		}, func() float64 { return float64(src.ReplayStatus().Operations.Rejected) }),
	)
}

// /////////////////////////////////////////////////////////////////

// ctxKey represents the type of value for the context key.
type ctxKey int

// key is how metric values are stored/retrieved.
const key ctxKey = 1

// Set sets the metrics data into the context.
func Set(ctx context.Context, m *Metrics) context.Context {
	return context.WithValue(ctx, key, m)
}

// AddPanics increments the panics metric held in the context by 1.
func AddPanics(ctx context.Context) {
	if v, ok := ctx.Value(key).(*Metrics); ok {
		v.AddPanic()
	}
}
