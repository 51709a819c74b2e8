// Package metrics exposes Prometheus collectors for the persistence process.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Record outcome statuses.
const (
	StatusOK          = "ok"
	StatusFailedParse = "failed_to_parse"
	StatusFailedSave  = "failed_to_save"
)

var (
	recordsProcessedTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		recordsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_processed_total",
				Help: "Total number of records processed, labeled by outcome.",
			},
			[]string{"status"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOK counts a record persisted successfully.
func RecordOK() {
	recordsProcessedTotal.WithLabelValues(StatusOK).Inc()
}

// RecordFailedParse counts a delivery that could not be decoded.
func RecordFailedParse() {
	recordsProcessedTotal.WithLabelValues(StatusFailedParse).Inc()
}

// RecordFailedSave counts a record the backends rejected.
func RecordFailedSave() {
	recordsProcessedTotal.WithLabelValues(StatusFailedSave).Inc()
}
