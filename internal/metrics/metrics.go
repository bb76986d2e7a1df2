// Package metrics holds the Prometheus instruments for the waitlist. All
// collectors are registered with the global registry and exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OffersIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_offers_issued_total",
			Help: "Cumulative number of plot offers issued.",
		})

	OffersResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_offers_resolved_total",
			Help: "Cumulative number of offers leaving the pending state, by outcome.",
		}, []string{"outcome"})

	ExpirySweepErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_expiry_errors_total",
			Help: "Cumulative number of offers the expiry sweep failed to process.",
		})

	WaitingApplicants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "waitlist_waiting_applicants",
			Help: "Number of waiting applicants seen by the last monthly report.",
		})

	NotificationsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_notifications_sent_total",
			Help: "Cumulative number of notification messages delivered.",
		})

	NotificationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_notification_failures_total",
			Help: "Cumulative number of notification messages that were not delivered, by reason.",
		}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		OffersIssuedTotal,
		OffersResolvedTotal,
		ExpirySweepErrorsTotal,
		WaitingApplicants,
		NotificationsSentTotal,
		NotificationFailuresTotal,
	)
}
