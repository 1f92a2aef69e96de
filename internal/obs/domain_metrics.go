package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartAddsTotal counts add attempts by result ("added", "duplicate").
	CartAddsTotal *prometheus.CounterVec
	// CheckoutTotal counts checkout outcomes ("succeeded", "failed", "in_flight").
	CheckoutTotal *prometheus.CounterVec
	// CheckoutWarningsTotal counts advisory warnings returned with successful checkouts.
	CheckoutWarningsTotal *prometheus.CounterVec
	// PointsEarnedTotal accumulates the loyalty points reported by the backend.
	PointsEarnedTotal prometheus.Counter
	// SessionEventsTotal counts login and logout outcomes.
	SessionEventsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartAddsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_adds_total",
			Help:      "Count of cart add attempts by result.",
		}, []string{"result"})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"outcome"})
		CheckoutWarningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_warnings_total",
			Help:      "Advisory warnings reported by successful checkouts.",
		}, []string{"kind"})
		PointsEarnedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_earned_total",
			Help:      "Loyalty points reported by successful checkouts.",
		})
		SessionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Login and logout outcomes.",
		}, []string{"event", "result"})

		mustRegisterCollector(reg, CartAddsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartAddsTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutWarningsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutWarningsTotal = v
			}
		})
		mustRegisterCollector(reg, PointsEarnedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PointsEarnedTotal = v
			}
		})
		mustRegisterCollector(reg, SessionEventsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SessionEventsTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// ObserveCartAdd records a cart add attempt. No-op before registration.
func ObserveCartAdd(result string) {
	if CartAddsTotal != nil {
		CartAddsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveCheckout records a checkout outcome.
func ObserveCheckout(outcome string) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveCheckoutWarnings adds n advisory warnings of kind.
func ObserveCheckoutWarnings(kind string, n int) {
	if CheckoutWarningsTotal != nil && n > 0 {
		CheckoutWarningsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// AddPointsEarned accumulates points reported by the backend. Negative
// values are ignored.
func AddPointsEarned(points float64) {
	if PointsEarnedTotal != nil && points > 0 {
		PointsEarnedTotal.Add(points)
	}
}

// ObserveSession records a login or logout outcome.
func ObserveSession(event, result string) {
	if SessionEventsTotal != nil {
		SessionEventsTotal.WithLabelValues(event, result).Inc()
	}
}
