package observability

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Selection outcomes recorded by Metrics.ObserveSelection.
const (
	OutcomeSatisfied     = "satisfied"
	OutcomePartial       = "partial"
	OutcomeIndeterminate = "indeterminate"
)

// Metrics groups the Prometheus collectors of the offer core. All methods are
// safe on a nil receiver so components may run without metrics.
type Metrics struct {
	Selections        *prometheus.CounterVec
	SelectedItems     *prometheus.CounterVec
	Announcements     *prometheus.CounterVec
	ReadinessInvoked  prometheus.Counter
	SummaryRecomputes *prometheus.CounterVec
	SummarySuperseded prometheus.Counter
	Mutations         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer. Collectors already registered under the
// same name are reused.
//
// Postcondition: Returns a Metrics or a non-nil error.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Item selections by mode and outcome.",
		}, []string{"mode", "outcome"}),
		SelectedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selected_items_total",
			Help:      "Items returned by selections, by mode.",
		}, []string{"mode"}),
		Announcements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_announcements_total",
			Help:      "Inventory readiness announcements, by whether any callback was waiting.",
		}, []string{"result"}),
		ReadinessInvoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_callbacks_invoked_total",
			Help:      "Readiness callbacks invoked after an announcement.",
		}),
		SummaryRecomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_recomputes_total",
			Help:      "Offer summary recomputations, by immediate or deferred path.",
		}, []string{"path"}),
		SummarySuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_superseded_total",
			Help:      "Deferred summary recomputations cancelled by a newer change.",
		}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_mutations_total",
			Help:      "Offer mutations applied, by kind.",
		}, []string{"kind"}),
	}

	var err error
	if m.Selections, err = registerVec(reg, m.Selections); err != nil {
		return nil, err
	}
	if m.SelectedItems, err = registerVec(reg, m.SelectedItems); err != nil {
		return nil, err
	}
	if m.Announcements, err = registerVec(reg, m.Announcements); err != nil {
		return nil, err
	}
	if m.SummaryRecomputes, err = registerVec(reg, m.SummaryRecomputes); err != nil {
		return nil, err
	}
	if m.Mutations, err = registerVec(reg, m.Mutations); err != nil {
		return nil, err
	}
	if m.ReadinessInvoked, err = registerCounter(reg, m.ReadinessInvoked); err != nil {
		return nil, err
	}
	if m.SummarySuperseded, err = registerCounter(reg, m.SummarySuperseded); err != nil {
		return nil, err
	}
	return m, nil
}

func registerVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("observability: register counter vec: %w", err)
	}
	return c, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("observability: register counter: %w", err)
	}
	return c, nil
}

// ObserveSelection records one selection of mode with its outcome and the
// number of items returned.
func (m *Metrics) ObserveSelection(mode, outcome string, items int) {
	if m == nil {
		return
	}
	m.Selections.WithLabelValues(mode, outcome).Inc()
	if items > 0 {
		m.SelectedItems.WithLabelValues(mode).Add(float64(items))
	}
}

// ObserveAnnouncement records an announcement that invoked n callbacks.
func (m *Metrics) ObserveAnnouncement(n int) {
	if m == nil {
		return
	}
	result := "empty"
	if n > 0 {
		result = "drained"
	}
	m.Announcements.WithLabelValues(result).Inc()
	m.ReadinessInvoked.Add(float64(n))
}

// ObserveRecompute records a summary recomputation on path "immediate" or
// "deferred".
func (m *Metrics) ObserveRecompute(path string) {
	if m == nil {
		return
	}
	m.SummaryRecomputes.WithLabelValues(path).Inc()
}

// ObserveSuperseded records a cancelled deferred recomputation.
func (m *Metrics) ObserveSuperseded() {
	if m == nil {
		return
	}
	m.SummarySuperseded.Inc()
}

// ObserveMutation records one applied offer mutation of kind "add" or "remove".
func (m *Metrics) ObserveMutation(kind string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(kind).Inc()
}
