package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "triangle"

var (
	exchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "exchange",
		Name:      "total",
		Help:      "The number of the coordinated exchanges by kind and result.",
	}, []string{"kind", "result"})

	exchangeTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "exchange",
		Name:      "duration_seconds",
		Help:      "The time (in seconds) it takes both ends to finish the exchange.",
	}, []string{"kind"})

	autoActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "responder",
		Name:      "actions_total",
		Help:      "The number of the responder's automatic actions by kind and result.",
	}, []string{"kind", "result"})
)

func init() {
	prometheus.MustRegister(exchanges, exchangeTime, autoActions)
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
