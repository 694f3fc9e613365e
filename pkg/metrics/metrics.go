package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "thriftkids", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "thriftkids", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	ListingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "thriftkids", Name: "listings_created_total", Help: "Listings returned by the create workflow, by whether the record store accepted them."},
		[]string{"persisted"},
	)
	DescriptionSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "thriftkids", Name: "description_source_total", Help: "Where listing descriptions came from (manual, generated, template)."},
		[]string{"source"},
	)
	Degradations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "thriftkids", Name: "degradations_total", Help: "Failures absorbed by the listing workflow, by step."},
		[]string{"step"},
	)
	Events = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "thriftkids", Name: "events_total", Help: "Analytics events by type and append result."},
		[]string{"type", "result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ListingsCreated)
	reg.MustRegister(DescriptionSource)
	reg.MustRegister(Degradations)
	reg.MustRegister(Events)
}
