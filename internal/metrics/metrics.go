package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects the metrics of a single CLI run on its own registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	nodesDiscovered prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nerve",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Management system API requests by method, endpoint and status code",
			},
			[]string{"method", "endpoint", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nerve",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Management system API request duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		nodesDiscovered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "nerve",
				Name:      "nodes_discovered",
				Help:      "Nodes found by the last tree walk",
			},
		),
	}
	r.registry.MustRegister(r.requestsTotal, r.requestDuration, r.nodesDiscovered)
	return r
}

// ObserveRequest records one API call. code is 0 when no response arrived.
func (r *Recorder) ObserveRequest(method, endpoint string, code int, d time.Duration) {
	if r == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	r.requestsTotal.WithLabelValues(method, endpoint, label).Inc()
	r.requestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

func (r *Recorder) SetNodesDiscovered(n int) {
	if r == nil {
		return
	}
	r.nodesDiscovered.Set(float64(n))
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteFile dumps the registry in the text exposition format, for the node
// exporter textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
