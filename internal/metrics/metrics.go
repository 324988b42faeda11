// Package metrics registers the pipeline's prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	IntakeTotal     prometheus.Counter
	IntakeConflict  prometheus.Counter
	AnchoredTotal   prometheus.Counter
	ReconciledTotal prometheus.Counter
	RetriedTotal    prometheus.Counter
	DeadLetterTotal prometheus.Counter
	EmptyPolls      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IntakeTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "craftid_intake_total", Help: "CraftID records created.",
		}),
		IntakeConflict: f.NewCounter(prometheus.CounterOpts{
			Name: "craftid_intake_conflict_total", Help: "Intake requests rejected for duplicate art name.",
		}),
		AnchoredTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "craftid_anchored_total", Help: "Queue items anchored on-chain.",
		}),
		ReconciledTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "craftid_reconciled_total", Help: "Items found already anchored and reconciled without a new tx.",
		}),
		RetriedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "craftid_retried_total", Help: "Transient failures returned to the queue.",
		}),
		DeadLetterTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "craftid_dead_letter_total", Help: "Items moved to the terminal failed state.",
		}),
		EmptyPolls: f.NewCounter(prometheus.CounterOpts{
			Name: "craftid_empty_polls_total", Help: "Batcher polls that leased nothing.",
		}),
	}
}
