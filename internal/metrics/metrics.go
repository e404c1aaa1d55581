// Package metrics provides counters, Prometheus collectors, and the HTTP
// handler for exporting notifier runtime metrics.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the counters below.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	tokenExchanges int64
	sendsSucceeded int64
	sendsFailed    int64
	tokensPruned   int64
)

var (
	promTokenExchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_token_exchanges_total",
			Help: "Access token exchanges against the authorization endpoint",
		},
		[]string{"status"},
	)
	promDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_dispatches_total",
			Help: "Change events handled, by outcome",
		},
		[]string{"outcome"},
	)
	promSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_push_sends_total",
			Help: "Per-device push sends",
		},
		[]string{"status"},
	)
	promPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_tokens_pruned_total",
			Help: "Device tokens cleared after the gateway reported them unregistered",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promTokenExchanges,
		promDispatches,
		promSends,
		promPruned,
	)
}

// IncTokenExchange records one exchange attempt.
func IncTokenExchange(ok bool) {
	if ok {
		atomic.AddInt64(&tokenExchanges, 1)
		promTokenExchanges.WithLabelValues(StatusSuccess).Inc()
		return
	}
	promTokenExchanges.WithLabelValues(StatusFailure).Inc()
}

// IncDispatch records a finished dispatch. outcome is free-form, e.g. "sent",
// "no_recipients", "auth_error".
func IncDispatch(outcome string) {
	promDispatches.WithLabelValues(outcome).Inc()
}

func IncSend(ok bool) {
	if ok {
		atomic.AddInt64(&sendsSucceeded, 1)
		promSends.WithLabelValues(StatusSuccess).Inc()
		return
	}
	atomic.AddInt64(&sendsFailed, 1)
	promSends.WithLabelValues(StatusFailure).Inc()
}

func IncPruned() {
	atomic.AddInt64(&tokensPruned, 1)
	promPruned.Inc()
}

// StatsSnapshot is a snapshot of the in-process counters.
type StatsSnapshot struct {
	TokenExchanges int64 `json:"token_exchanges"`
	SendsSucceeded int64 `json:"sends_succeeded"`
	SendsFailed    int64 `json:"sends_failed"`
	TokensPruned   int64 `json:"tokens_pruned"`
}

func GetSnapshot() StatsSnapshot {
	return StatsSnapshot{
		TokenExchanges: atomic.LoadInt64(&tokenExchanges),
		SendsSucceeded: atomic.LoadInt64(&sendsSucceeded),
		SendsFailed:    atomic.LoadInt64(&sendsFailed),
		TokensPruned:   atomic.LoadInt64(&tokensPruned),
	}
}

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }
