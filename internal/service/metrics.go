package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "food_admin",
		Subsystem: "auth",
		Name:      "registrations_total",
		Help:      "Admin registration attempts by result.",
	}, []string{"result"})

	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "food_admin",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	resetRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "food_admin",
		Subsystem: "auth",
		Name:      "reset_requests_total",
		Help:      "Password reset OTP requests by result.",
	}, []string{"result"})

	resetCompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "food_admin",
		Subsystem: "auth",
		Name:      "reset_completions_total",
		Help:      "Password reset completions by result.",
	}, []string{"result"})
)
