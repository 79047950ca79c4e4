// vesselmap/metrics.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package vesselmap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	feedTicks     prometheus.Counter
	feedReports   prometheus.Counter
	routeMeasures prometheus.Counter
	markers       prometheus.Gauge
	visible       prometheus.Gauge
}

// newMetrics registers the adapter's metrics with reg; a nil reg leaves
// them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		feedTicks: f.NewCounter(prometheus.CounterOpts{
			Name: "harborline_feed_ticks_total",
			Help: "Batches of position reports applied to the map",
		}),
		feedReports: f.NewCounter(prometheus.CounterOpts{
			Name: "harborline_feed_reports_total",
			Help: "Position reports applied to markers",
		}),
		routeMeasures: f.NewCounter(prometheus.CounterOpts{
			Name: "harborline_route_measurements_total",
			Help: "Distances reported by the route tool",
		}),
		markers: f.NewGauge(prometheus.GaugeOpts{
			Name: "harborline_markers",
			Help: "Vessel markers on the map",
		}),
		visible: f.NewGauge(prometheus.GaugeOpts{
			Name: "harborline_markers_visible",
			Help: "Vessel markers inside the viewport at the last count",
		}),
	}
}
