package core

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	pairsServed     prometheus.Counter
	cycleResets     prometheus.Counter
	imagesUploaded  *prometheus.CounterVec
	uploadsRejected prometheus.Counter
	imagesDeleted   prometheus.Counter
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pairsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imagequiz",
			Name:      "pairs_served_total",
			Help:      "Quiz pairs handed out.",
		}),
		cycleResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imagequiz",
			Name:      "cycle_resets_total",
			Help:      "Quiz cycles that were exhausted and reset.",
		}),
		imagesUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagequiz",
			Name:      "images_uploaded_total",
			Help:      "Images stored, by correctness flag.",
		}, []string{"correct"}),
		uploadsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imagequiz",
			Name:      "uploads_rejected_total",
			Help:      "Uploads refused by the upload checks.",
		}),
		imagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imagequiz",
			Name:      "images_deleted_total",
			Help:      "Images deleted by administrators.",
		}),
	}
	m.registry.MustRegister(m.pairsServed, m.cycleResets, m.imagesUploaded, m.uploadsRejected, m.imagesDeleted)
	return m
}

func (m *Metrics) uploaded(isCorrect bool) {
	m.imagesUploaded.WithLabelValues(strconv.FormatBool(isCorrect)).Inc()
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
