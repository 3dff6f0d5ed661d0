package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	published = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dynamic_web_app",
		Subsystem: "queue",
		Name:      "published_total",
		Help:      "Messages published, by queue and result.",
	}, []string{"queue", "result"})

	handled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dynamic_web_app",
		Subsystem: "queue",
		Name:      "handled_total",
		Help:      "Messages handled by consumers, by queue and result.",
	}, []string{"queue", "result"})
)
