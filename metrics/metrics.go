// Package metrics holds the Prometheus collectors of transfer executions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transfer collects per-job transfer metrics. A nil *Transfer is a valid no-op.
type Transfer struct {
	filesTransferred  *prometheus.CounterVec
	bytesTransferred  *prometheus.CounterVec
	propertiesDropped *prometheus.CounterVec
	executions        *prometheus.CounterVec
	duration          *prometheus.HistogramVec
}

// NewTransfer registers the transfer collectors on reg.
func NewTransfer(reg prometheus.Registerer) *Transfer {
	f := promauto.With(reg)
	return &Transfer{
		filesTransferred: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grabsync_files_transferred_total",
			Help: "Files written to the client repository.",
		}, []string{"job"}),
		bytesTransferred: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grabsync_bytes_transferred_total",
			Help: "Bytes written to the client repository.",
		}, []string{"job"}),
		propertiesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grabsync_properties_dropped_total",
			Help: "Node properties withheld from the client repository as not transferable.",
		}, []string{"job"}),
		executions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grabsync_executions_total",
			Help: "Finished job executions by final status.",
		}, []string{"job", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grabsync_execution_duration_seconds",
			Help:    "Wall time of job executions.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"job"}),
	}
}

// FileTransferred records one written file of size bytes.
func (t *Transfer) FileTransferred(job string, size int64) {
	if t == nil {
		return
	}
	t.filesTransferred.WithLabelValues(job).Inc()
	t.bytesTransferred.WithLabelValues(job).Add(float64(size))
}

// PropertiesDropped records properties filtered out of a node document.
func (t *Transfer) PropertiesDropped(job string, n int) {
	if t == nil || n == 0 {
		return
	}
	t.propertiesDropped.WithLabelValues(job).Add(float64(n))
}

// ExecutionFinished records the final status and duration of an execution.
func (t *Transfer) ExecutionFinished(job, status string, seconds float64) {
	if t == nil {
		return
	}
	t.executions.WithLabelValues(job, status).Inc()
	t.duration.WithLabelValues(job).Observe(seconds)
}
