package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	pollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_polls_total",
		Help: "Completed poll cycles.",
	})

	pollsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_polls_failed_total",
		Help: "Poll cycles that ended in a transport or decode error.",
	})

	pollLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatkit_poll_latency_seconds",
		Help:    "Wall time of one poll fetch.",
		Buckets: prometheus.DefBuckets,
	})

	sendsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_sends_total",
		Help: "Optimistic sends attempted.",
	})

	sendsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_sends_failed_total",
		Help: "Sends that were marked failed (POST error or never echoed).",
	})
)

func init() {
	prometheus.MustRegister(pollsTotal)
	prometheus.MustRegister(pollsFailed)
	prometheus.MustRegister(pollLatency)
	prometheus.MustRegister(sendsTotal)
	prometheus.MustRegister(sendsFailed)
}
