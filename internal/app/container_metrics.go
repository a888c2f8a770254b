package app

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"transport-dispatch/internal/metrics"
)

type metricsOut struct {
	dig.Out

	RateLimitExceededTotal prometheus.Counter `name:"rate_limit_exceeded_total"`
	GatewayRetriesTotal    prometheus.Counter `name:"gateway_retries_total"`
	ExpirySweepsTotal      prometheus.Counter `name:"offer_expiry_sweeps_total"`
	Dispatch               *metrics.Dispatch
}

// provideMetrics registers service collectors with the default registerer.
// Collectors that are already registered are reused.
func provideMetrics() (metricsOut, error) {
	reg := prometheus.DefaultRegisterer

	rl, err := registerCounter(reg, "rate_limit_exceeded_total", metrics.NewRateLimitExceededTotal())
	if err != nil {
		return metricsOut{}, err
	}
	gr, err := registerCounter(reg, "gateway_retries_total", metrics.NewGatewayRetriesTotal())
	if err != nil {
		return metricsOut{}, err
	}
	sw, err := registerCounter(reg, "offer_expiry_sweeps_total", metrics.NewExpirySweepsTotal())
	if err != nil {
		return metricsOut{}, err
	}

	d, err := metrics.RegisterDispatch(reg)
	if err != nil {
		return metricsOut{}, fmt.Errorf("register dispatch metrics: %w", err)
	}

	return metricsOut{
		RateLimitExceededTotal: rl,
		GatewayRetriesTotal:    gr,
		ExpirySweepsTotal:      sw,
		Dispatch:               d,
	}, nil
}

func registerCounter(reg prometheus.Registerer, name string, c prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return c, nil
}
