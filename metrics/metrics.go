// Package metrics exports stack and lifecycle state to Prometheus and
// serves liveness and readiness endpoints.
//
// Endpoints:
//
//	/metrics  Prometheus exposition
//	/live     process liveness
//	/ready    200 only while the device interface is published
//
// Binaries built with the "profile" tag also serve /debug/pprof/.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sys/unix"

	"github.com/ardnew/intstack/device"
	"github.com/ardnew/intstack/lifecycle"
	"github.com/ardnew/intstack/pkg"
	"github.com/ardnew/intstack/pkg/prof"
	"github.com/ardnew/intstack/stack"
)

const namespace = "intstack"

// maxGoroutines is the liveness threshold.
const maxGoroutines = 1000

// Metrics holds the collectors for one daemon.
type Metrics struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	publishFailures prometheus.Counter
	published       prometheus.Gauge

	health healthcheck.Handler
}

// Sources are the live values exported as gauges. Nil fields are
// skipped.
type Sources struct {
	Stack       *stack.Stack
	Connections func() int
	Published   func() bool
}

// New creates and registers the collectors.
func New(src Sources) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Device operations by operation and result.",
		}, []string{"op", "result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Lifecycle transitions by target state.",
		}, []string{"to"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Attach events whose interface could not be published.",
		}),
		published: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interface_published",
			Help:      "1 while the device node is published.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations,
		m.transitions,
		m.publishFailures,
		m.published,
	)

	if st := src.Stack; st != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stack_depth",
				Help:      "Number of elements on the stack.",
			}, func() float64 { return float64(st.Depth()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stack_capacity",
				Help:      "Maximum number of elements the stack holds.",
			}, func() float64 { return float64(st.Capacity()) }),
		)
	}
	if conns := src.Connections; conns != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Connected clients.",
		}, func() float64 { return float64(conns()) }))
	}

	m.health = healthcheck.NewMetricsHandler(m.registry, namespace)
	m.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	if published := src.Published; published != nil {
		m.health.AddReadinessCheck("interface-published", func() error {
			if !published() {
				return pkg.ErrNotPublished
			}
			return nil
		})
	}

	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveOperation counts a device operation. It has the signature of
// device.Observer.
func (m *Metrics) ObserveOperation(op device.Op, err error) {
	result := "ok"
	if err != nil {
		result = unix.ErrnoName(pkg.Errno(err))
	}
	m.operations.WithLabelValues(string(op), result).Inc()
}

// ObserveTransition records a lifecycle transition.
func (m *Metrics) ObserveTransition(_, to lifecycle.State) {
	m.transitions.WithLabelValues(to.String()).Inc()
	if to == lifecycle.StateAttached {
		m.published.Set(1)
	} else {
		m.published.Set(0)
	}
}

// ObservePublishFailure counts a failed attach.
func (m *Metrics) ObservePublishFailure(error) {
	m.publishFailures.Inc()
}

// Handler returns the HTTP handler for all endpoints.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	mux.HandleFunc("/live", m.health.LiveEndpoint)
	mux.HandleFunc("/ready", m.health.ReadyEndpoint)
	prof.Register(mux)
	return mux
}

// Serve listens on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.serve(ctx, ln)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	pkg.LogInfo(pkg.ComponentMetrics, "metrics listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
