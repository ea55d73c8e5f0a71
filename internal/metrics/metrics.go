// Package metrics exposes the daemon's lifecycle counters via
// prometheus/client_golang, complementing the structured logging in
// internal/ferror at every scan/walk/index transition.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScanIterations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ftpindexd",
		Name:      "scan_iterations_total",
		Help:      "Number of network sweeps completed.",
	})

	HostsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ftpindexd",
		Name:      "hosts_online",
		Help:      "Number of hosts that answered the last scan.",
	})

	WalksSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ftpindexd",
		Name:      "walks_succeeded_total",
		Help:      "Number of host walks that completed and committed.",
	})

	WalksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ftpindexd",
		Name:      "walks_failed_total",
		Help:      "Number of host walks that aborted and were discarded.",
	})

	FilesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ftpindexd",
		Name:      "files_indexed_total",
		Help:      "Number of files indexed by successful host walks.",
	})
)

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
