// Package metrics holds the Prometheus collectors for the API. All metrics
// are registered against the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OTPRequests counts send-otp calls by outcome (sent, invalid, delivery_failed, error).
	OTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_otp_requests_total",
		Help: "OTP issuance attempts by outcome.",
	}, []string{"result"})

	// OTPVerifications counts verify-otp calls by outcome (ok, rejected, error).
	OTPVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_otp_verifications_total",
		Help: "OTP verification attempts by outcome.",
	}, []string{"result"})

	// UsersCreated counts implicit registrations on first verification.
	UsersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "complaints_users_created_total",
		Help: "Users created on first successful OTP verification.",
	})

	// SubmissionsCreated counts stored complaints per category id.
	SubmissionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_submissions_created_total",
		Help: "Complaint submissions created per category.",
	}, []string{"category_id"})

	// RequestDuration tracks HTTP handler latency by route template and status.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "complaints_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
