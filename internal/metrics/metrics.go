package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewGatewayRetriesTotal returns a Prometheus counter for the number of retry attempts performed by gateways
func NewGatewayRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Total number of retry attempts performed by gateways",
	})
}

// NewExpirySweepsTotal returns a Prometheus counter for recovery sweeps of overdue offers
func NewExpirySweepsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offer_expiry_sweeps_total",
		Help: "Total number of recovery sweeps over overdue offers",
	})
}

// Dispatch groups the counters of the escalation engine.
type Dispatch struct {
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewDispatch creates the dispatch counters. They are not registered.
func NewDispatch() *Dispatch {
	return &Dispatch{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_transitions_total",
			Help: "Offer state transitions by event",
		}, []string{"event"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_outcomes_total",
			Help: "Terminal dispatch groups by outcome",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_side_effect_failures_total",
			Help: "Failed notifications, order updates and timer operations by target",
		}, []string{"target"}),
	}
}

// Register registers every dispatch counter.
func (d *Dispatch) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{d.transitions, d.outcomes, d.failures} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDispatch creates the dispatch counters and registers them with r.
// Counters registered earlier under the same names are reused.
func RegisterDispatch(r prometheus.Registerer) (*Dispatch, error) {
	d := NewDispatch()
	for _, v := range []**prometheus.CounterVec{&d.transitions, &d.outcomes, &d.failures} {
		err := r.Register(*v)
		if err == nil {
			continue
		}
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		*v = existing
	}
	return d, nil
}

// Transition counts a state transition.
func (d *Dispatch) Transition(event string) { d.transitions.WithLabelValues(event).Inc() }

// Outcome counts a terminal group.
func (d *Dispatch) Outcome(outcome string) { d.outcomes.WithLabelValues(outcome).Inc() }

// SideEffectFailure counts a failed best-effort side effect.
func (d *Dispatch) SideEffectFailure(target string) { d.failures.WithLabelValues(target).Inc() }

// TransitionsVec exposes the transition counter for tests and dashboards.
func (d *Dispatch) TransitionsVec() *prometheus.CounterVec { return d.transitions }

// OutcomesVec exposes the outcome counter.
func (d *Dispatch) OutcomesVec() *prometheus.CounterVec { return d.outcomes }

// FailuresVec exposes the side effect failure counter.
func (d *Dispatch) FailuresVec() *prometheus.CounterVec { return d.failures }
