package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "marketplace"

// Metrics di-inject ke setiap service; registry dipilih di cmd/* (test pakai registry baru).
type Metrics struct {
	Reservations        *prometheus.CounterVec
	Conversions         *prometheus.CounterVec
	ReservationsExpired prometheus.Counter
	SettlementCredits   prometheus.Counter
	SettlementFailures  prometheus.Counter
	SettlementBlocked   prometheus.Counter
	Payouts             *prometheus.CounterVec
	ModeCache           *prometheus.CounterVec
	ModeChanges         *prometheus.CounterVec
	JobDuration         *prometheus.HistogramVec
	Admission           *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inventory", Name: "reservations_total",
			Help: "Reservation attempts by result.",
		}, []string{"result"}),
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inventory", Name: "conversions_total",
			Help: "Reservation conversions by kind and result.",
		}, []string{"kind", "result"}),
		ReservationsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inventory", Name: "reservations_expired_total",
			Help: "Reservations flipped to EXPIRED by the release sweep.",
		}),
		SettlementCredits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "settlement", Name: "orders_credited_total",
			Help: "Orders moved to ELIGIBLE with seller credits written.",
		}),
		SettlementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "settlement", Name: "order_failures_total",
			Help: "Orders skipped in a settlement scan because of an error.",
		}),
		SettlementBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "settlement", Name: "rto_blocked_total",
			Help: "Orders blocked from settlement by RTO.",
		}),
		Payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payout", Name: "batches_total",
			Help: "Payout batch creations by result.",
		}, []string{"result"}),
		ModeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sellermode", Name: "cache_lookups_total",
			Help: "Operational mode cache lookups by result.",
		}, []string{"result"}),
		ModeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sellermode", Name: "changes_total",
			Help: "Operational mode transitions by target mode.",
		}, []string{"to"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "run_duration_seconds",
			Help:    "Scheduled job run duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job", "result"}),
		Admission: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sellermode", Name: "admission_rejections_total",
			Help: "Requests refused by the seller admission gate.",
		}, []string{"mode"}),
	}
	reg.MustRegister(
		m.Reservations, m.Conversions, m.ReservationsExpired,
		m.SettlementCredits, m.SettlementFailures, m.SettlementBlocked,
		m.Payouts, m.ModeCache, m.ModeChanges, m.JobDuration, m.Admission,
	)
	return m
}

// Result: label "ok" / "error" untuk CounterVec ber-label result.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
