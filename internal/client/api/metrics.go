package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Métricas do interceptor de autenticação
var (
	refreshAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "client_auth_refresh_attempts_total",
		Help: "Tentativas de refresh de token",
	})
	refreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "client_auth_refresh_failures_total",
		Help: "Refreshes de token que falharam",
	})
)
