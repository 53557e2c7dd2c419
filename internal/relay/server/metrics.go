package server

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	bundlesPublished prometheus.Counter
	bundlesServed    *prometheus.CounterVec
	enqueued         prometheus.Counter
	rejected         *prometheus.CounterVec
	acked            prometheus.Counter
	expired          prometheus.Counter
	queued           prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		bundlesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paircrypt_relay_bundles_published_total",
			Help: "Number of pre-key bundles published",
		}),
		bundlesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paircrypt_relay_bundles_served_total",
			Help: "Number of pre-key bundles handed out, by whether a one-time pre-key was included",
		}, []string{"one_time"}),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paircrypt_relay_envelopes_enqueued_total",
			Help: "Number of envelopes accepted for delivery",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paircrypt_relay_envelopes_rejected_total",
			Help: "Number of envelopes refused, by reason",
		}, []string{"reason"}),
		acked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paircrypt_relay_envelopes_acked_total",
			Help: "Number of envelopes acknowledged by their recipient",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paircrypt_relay_envelopes_expired_total",
			Help: "Number of envelopes dropped after the retention window",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paircrypt_relay_envelopes_queued",
			Help: "Number of envelopes currently queued",
		}),
	}
	reg.MustRegister(m.bundlesPublished, m.bundlesServed, m.enqueued, m.rejected, m.acked, m.expired, m.queued)
	return m
}
