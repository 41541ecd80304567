package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_sends_total",
		Help: "Total campaign send attempts by final result",
	}, []string{"result"})

	sendRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_send_retries_total",
		Help: "Total transient send failures that triggered a retry",
	})

	campaignsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campaigns_running",
		Help: "Number of campaign workers currently active in this process",
	})

	sendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "campaign_send_duration_seconds",
		Help:    "Duration of gateway send calls",
		Buckets: prometheus.DefBuckets,
	})
)
