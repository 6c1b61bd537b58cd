package autoroute

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	// routeConnectionsTotal counts connection attempts by result.
	// Labels: "routed", "exhausted", "no_via", "insert_failed", "canceled", "other"
	routeConnectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otr_autoroute_connections_total",
		Help: "Connection routing attempts by result",
	}, []string{"result"})

	routeNetDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "otr_autoroute_net_duration_seconds",
		Help:    "Time spent routing one net",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	})

	searchExpansions = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "otr_autoroute_search_expansions",
		Help:    "Elements popped per connection search",
		Buckets: []float64{10, 100, 1000, 10000, 100000},
	})

	graphRooms = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "otr_autoroute_graph_rooms",
		Help:    "Rooms in the expansion graph per connection",
		Buckets: []float64{10, 100, 1000, 10000},
	})

	ripupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otr_autoroute_ripups_total",
		Help: "Items ripped up to make room for other nets",
	})
)

var (
	tracerOnce sync.Once
	tracer     trace.Tracer
)

// getTracer returns the package tracer, creating it on first use so that a
// provider installed at startup is picked up.
func getTracer() trace.Tracer {
	tracerOnce.Do(func() {
		tracer = otel.Tracer("github.com/OpenTraceLab/OpenTraceRoute/pkg/autoroute")
	})
	return tracer
}
