// Copyright (c) 2022 Exograd SAS.
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that the above
// copyright notice and this permission notice appear in all copies.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
// WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY
// SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
// WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
// ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR
// IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.

package influx

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors of a batch processor.
type Metrics struct {
	PointsEnqueued prometheus.Counter
	PointsWritten  prometheus.Counter
	BatchesWritten prometheus.Counter
	FlushErrors    prometheus.Counter
	SyncWrites     prometheus.Counter
	PendingPoints  prometheus.Gauge
	FlushDuration  prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		PointsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "influx_client_points_enqueued_total",
			Help: "Total number of points handed to the batch processor.",
		}),

		PointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "influx_client_points_written_total",
			Help: "Total number of points successfully written.",
		}),

		BatchesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "influx_client_batches_written_total",
			Help: "Total number of batches successfully written.",
		}),

		FlushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "influx_client_flush_errors_total",
			Help: "Total number of batches which could not be written.",
		}),

		SyncWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "influx_client_sync_writes_total",
			Help: "Total number of points written synchronously because " +
				"the batch processor was stopped.",
		}),

		PendingPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "influx_client_pending_points",
			Help: "Number of points waiting to be flushed.",
		}),

		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "influx_client_flush_duration_seconds",
			Help:    "Duration of batch writes.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PointsEnqueued,
		m.PointsWritten,
		m.BatchesWritten,
		m.FlushErrors,
		m.SyncWrites,
		m.PendingPoints,
		m.FlushDuration,
	}
}

func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := r.Register(c); err != nil {
			return fmt.Errorf("cannot register collector: %w", err)
		}
	}

	return nil
}
