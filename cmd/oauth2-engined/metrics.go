package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the Prometheus counters for the two protocol endpoints.
type metrics struct {
	tokenRequests     *prometheus.CounterVec
	authorizeRequests *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		tokenRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth2_token_requests_total",
			Help: "Token endpoint requests by grant type and outcome",
		}, []string{"grant_type", "status"}),
		authorizeRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth2_authorize_requests_total",
			Help: "Authorize endpoint requests by response type and outcome",
		}, []string{"response_type", "status"}),
	}
}

func (m *metrics) observeToken(grantType, status string) {
	if grantType == "" {
		grantType = "unknown"
	}
	m.tokenRequests.WithLabelValues(grantType, status).Inc()
}

func (m *metrics) observeAuthorize(responseType, status string) {
	if responseType == "" {
		responseType = "unknown"
	}
	m.authorizeRequests.WithLabelValues(responseType, status).Inc()
}
