package vkrt

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the runtime's Prometheus instrumentation. They are registered
// against a private registry by default so importing this package never
// panics on a duplicate-registration collision in a host process that has
// its own default registry; call Metrics.MustRegisterDefault to additionally
// expose them on prometheus.DefaultRegisterer.
var Metrics = newMetrics()

type runtimeMetrics struct {
	registry *prometheus.Registry

	PipelineBuilds  *prometheus.CounterVec
	QueueSubmits    *prometheus.CounterVec
	StreamSyncs     *prometheus.CounterVec
	BytesCopied     *prometheus.CounterVec
	DescriptorWrites *prometheus.CounterVec
}

func newMetrics() *runtimeMetrics {
	reg := prometheus.NewRegistry()
	m := &runtimeMetrics{
		registry: reg,
		PipelineBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vkrt",
			Name:      "pipeline_builds_total",
			Help:      "Number of times a (device, kernel) pipeline was constructed from scratch.",
		}, []string{"device", "kernel"}),
		QueueSubmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vkrt",
			Name:      "queue_submits_total",
			Help:      "Number of vkQueueSubmit calls issued by Stream.synchronize.",
		}, []string{"device"}),
		StreamSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vkrt",
			Name:      "stream_synchronize_total",
			Help:      "Number of Stream.Synchronize calls.",
		}, []string{"device"}),
		BytesCopied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vkrt",
			Name:      "bytes_copied_total",
			Help:      "Bytes moved by CopyDataFromTo, by direction.",
		}, []string{"direction"}),
		DescriptorWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vkrt",
			Name:      "descriptor_writes_total",
			Help:      "Number of vkUpdateDescriptorSets calls issued by the deferred launch protocol.",
		}, []string{"device", "kernel"}),
	}
	reg.MustRegister(m.PipelineBuilds, m.QueueSubmits, m.StreamSyncs, m.BytesCopied, m.DescriptorWrites)
	return m
}

// Registry exposes the private Prometheus registry backing the runtime's
// metrics, for embedding into a host's /metrics handler.
func (m *runtimeMetrics) Registry() *prometheus.Registry { return m.registry }

// MustRegisterDefault additionally registers the runtime's collectors on
// prometheus.DefaultRegisterer, for processes that expose a single global
// /metrics endpoint.
func (m *runtimeMetrics) MustRegisterDefault() {
	prometheus.MustRegister(m.PipelineBuilds, m.QueueSubmits, m.StreamSyncs, m.BytesCopied, m.DescriptorWrites)
}
