package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ outcomes, one per way RunOnce can settle an entry.
const (
	dlqRequeued    = "requeued"
	dlqRescheduled = "rescheduled"
	dlqQuarantined = "quarantined"
)

var (
	dlqEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mergington",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "Dead-lettered activity and enrollment events settled by the DLQ manager, by outcome.",
	}, []string{"aggregate", "event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mergington",
		Subsystem: "dlq",
		Name:      "backlog",
		Help:      "DLQ rows per aggregate; state is pending (awaiting replay) or quarantined.",
	}, []string{"aggregate", "state"})
)

func init() {
	prometheus.MustRegister(dlqEntriesCounter, dlqBacklogGauge)
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqEntriesCounter.WithLabelValues(entry.AggregateType, entry.EventType, outcome).Inc()
}

func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	rows, err := pool.Query(ctx, `SELECT aggregate_type, quarantined_at IS NOT NULL, COUNT(*)
                                    FROM outbox_dlq
                                   GROUP BY 1, 2`)
	if err != nil {
		return
	}
	defer rows.Close()

	// Seed both aggregates so a drained backlog reports zero instead of a stale count.
	counts := map[string]map[string]float64{
		"activity":   {"pending": 0, "quarantined": 0},
		"enrollment": {"pending": 0, "quarantined": 0},
	}
	for rows.Next() {
		var aggregate string
		var quarantined bool
		var count int64
		if err := rows.Scan(&aggregate, &quarantined, &count); err != nil {
			return
		}
		state := "pending"
		if quarantined {
			state = "quarantined"
		}
		if counts[aggregate] == nil {
			counts[aggregate] = map[string]float64{"pending": 0, "quarantined": 0}
		}
		counts[aggregate][state] = float64(count)
	}
	if rows.Err() != nil {
		return
	}
	for aggregate, states := range counts {
		for state, count := range states {
			dlqBacklogGauge.WithLabelValues(aggregate, state).Set(count)
		}
	}
}
