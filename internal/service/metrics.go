package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var authOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vidtube",
	Name:      "auth_operations_total",
	Help:      "Account and session operations by outcome.",
}, []string{"operation", "result"})

func observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		var svcErr *Error
		if errors.As(err, &svcErr) {
			result = string(svcErr.Kind)
		}
	}
	authOperations.WithLabelValues(operation, result).Inc()
}
