package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/mailwatch/internal/classify"
	"github.com/linnemanlabs/mailwatch/internal/mail"
	"github.com/linnemanlabs/mailwatch/internal/notify"
)

// Metrics holds Prometheus metrics for the processing pipeline.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	MessagesProcessed prometheus.Counter
	MessagesInserted  prometheus.Counter
	MessagesSkipped   prometheus.Counter
	AlertsSent        prometheus.Counter
	Classifications   *prometheus.CounterVec
	Fallbacks         *prometheus.CounterVec
	Dispatches        *prometheus.CounterVec
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailwatch_runs_total",
			Help: "Total pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailwatch_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}),
		MessagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailwatch_messages_processed_total",
			Help: "Total messages fetched and classified.",
		}),
		MessagesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailwatch_messages_inserted_total",
			Help: "Total new messages persisted.",
		}),
		MessagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailwatch_messages_skipped_total",
			Help: "Total messages skipped as duplicates or store failures.",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailwatch_alerts_sent_total",
			Help: "Total high-priority alerts delivered.",
		}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailwatch_classifications_total",
			Help: "Total classifications by mode and resulting priority.",
		}, []string{"mode", "priority"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailwatch_classifier_fallbacks_total",
			Help: "Total LLM classifications that fell back to rules, by reason.",
		}, []string{"reason"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailwatch_dispatches_total",
			Help: "Total alert dispatch attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.MessagesProcessed,
		m.MessagesInserted,
		m.MessagesSkipped,
		m.AlertsSent,
		m.Classifications,
		m.Fallbacks,
		m.Dispatches,
	)

	return m
}

// ClassifyHooks returns classifier hooks that increment the
// corresponding metrics.
func (m *Metrics) ClassifyHooks() classify.Hooks {
	return classify.Hooks{
		OnClassify: func(mode string, priority mail.Priority) {
			m.Classifications.WithLabelValues(mode, string(priority)).Inc()
		},
		OnFallback: func(reason string) {
			m.Fallbacks.WithLabelValues(reason).Inc()
		},
	}
}

// DispatchHooks returns dispatcher hooks that increment the
// corresponding metrics.
func (m *Metrics) DispatchHooks() notify.Hooks {
	return notify.Hooks{
		OnDispatch: func(result string) {
			m.Dispatches.WithLabelValues(result).Inc()
		},
	}
}
