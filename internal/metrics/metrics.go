// Package metrics provides Prometheus metrics for the synchronization
// engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// syncSessionsTotal counts processed SyncSession requests.
	// Labels:
	//   - result: "ok" or "error"
	syncSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diffsync_sync_sessions_total",
			Help: "Total number of SyncSession requests processed",
		},
		[]string{"result"},
	)

	// syncCommandsTotal counts per-file SyncCommand actions dispatched.
	// Labels:
	//   - action: "delta", "raw", or "nullify"
	syncCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diffsync_sync_commands_total",
			Help: "Total number of SyncCommand actions dispatched by kind",
		},
		[]string{"action"},
	)

	// resyncTotal counts outbound Raw actions returned in response to a
	// non-Raw command; the engine only emits those once deltaOk is false.
	resyncTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diffsync_resync_total",
			Help: "Total number of Raw resyncs forced by protocol desync",
		},
	)

	// activePapers reports the number of live PaperAgents.
	activePapers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "diffsync_active_papers",
			Help: "Number of papers with a live PaperAgent",
		},
	)
)

func init() {
	prometheus.MustRegister(syncSessionsTotal, syncCommandsTotal, resyncTotal, activePapers)
}

func RecordSyncSession(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	syncSessionsTotal.WithLabelValues(result).Inc()
}

func RecordSyncCommand(action string) {
	syncCommandsTotal.WithLabelValues(action).Inc()
}

func RecordResync() {
	resyncTotal.Inc()
}

func SetActivePapers(n int) {
	activePapers.Set(float64(n))
}
