package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsHandled counts SME events consumed per adapter and event kind
	EventsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlcoord",
			Name:      "events_total",
			Help:      "Total number of SME events handled by the link state machines",
		},
		[]string{"iface", "kind"},
	)

	// StateTransitions counts link state changes
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlcoord",
			Name:      "state_transitions_total",
			Help:      "Total number of link state transitions",
		},
		[]string{"iface", "from", "to"},
	)

	// DataPathOps counts data-path registration calls by outcome
	DataPathOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlcoord",
			Name:      "datapath_ops_total",
			Help:      "Total number of data-path register/deregister/set-state calls",
		},
		[]string{"op", "result"},
	)

	// PeersRegistered tracks peers currently registered per adapter
	PeersRegistered = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wlcoord",
			Name:      "peers_registered",
			Help:      "Number of peers currently registered with the data path",
		},
		[]string{"iface"},
	)

	// DFSRefCount mirrors the process-wide DFS channel reference count
	DFSRefCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wlcoord",
			Name:      "dfs_refcount",
			Help:      "Number of active AP instances operating on DFS channels",
		},
	)

	// LinkUpTimeouts counts expired waits for the network stack link-up ack
	LinkUpTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlcoord",
			Name:      "linkup_timeouts_total",
			Help:      "Total number of link-up acknowledgments that timed out",
		},
		[]string{"iface"},
	)

	// NotificationsDropped counts notifications a slow consumer could not take
	NotificationsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlcoord",
			Name:      "notifications_dropped_total",
			Help:      "Total number of notifications dropped because a consumer queue was full",
		},
		[]string{"consumer"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(EventsHandled)
		prometheus.DefaultRegisterer.Register(StateTransitions)
		prometheus.DefaultRegisterer.Register(DataPathOps)
		prometheus.DefaultRegisterer.Register(PeersRegistered)
		prometheus.DefaultRegisterer.Register(DFSRefCount)
		prometheus.DefaultRegisterer.Register(LinkUpTimeouts)
		prometheus.DefaultRegisterer.Register(NotificationsDropped)
	})
}
