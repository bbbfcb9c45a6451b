package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RentalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "numgate_rentals_total",
			Help: "Rental lifecycle counter by stage",
		},
		[]string{"stage"}, // acquired|otp|cancelled|expired|rejected
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "numgate_provider_requests_total",
			Help: "Numbering provider calls by action and outcome",
		},
		[]string{"action", "outcome"}, // getNumber|getStatus|setStatus , ok|reject|timeout|error
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		RentalsTotal,
		ProviderRequestsTotal,
	)
}
