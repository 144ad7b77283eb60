// Package prometheus exports distribution engine telemetry as Prometheus metrics.
package prometheus

import (
	"errors"
	"fmt"
	"strings"

	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
	"github.com/ericfisherdev/sharedlogin/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.AssignmentObserver = (*Observer)(nil)
	_ driven.HealthObserver     = (*Observer)(nil)
)

// Assignment outcomes used as the "outcome" label.
const (
	outcomeAssigned    = "assigned"
	outcomeManual      = "manual"
	outcomeOverflow    = "overflow"
	outcomeUnavailable = "unavailable"
)

// Observer counts assignment outcomes and bulk import rows per service, and
// exposes the latest credential health sweep as gauges.
type Observer struct {
	assignments *promclient.CounterVec
	imports     *promclient.CounterVec
	credentials *promclient.GaugeVec
	subscribers *promclient.GaugeVec
}

// NewObserver registers the engine metrics under namespace with reg. A nil
// reg uses the default registerer. Collectors that are already registered are
// reused.
func NewObserver(namespace string, reg promclient.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "sharedlogin"
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	assignments := promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Name:      "assignments_total",
		Help:      "Credential assignments resolved, by service and outcome.",
	}, []string{"service", "outcome"})
	imports := promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Name:      "import_rows_total",
		Help:      "Bulk import rows processed, by service and result.",
	}, []string{"service", "result"})

	credentials := promclient.NewGaugeVec(promclient.GaugeOpts{
		Namespace: namespace,
		Name:      "credentials",
		Help:      "Visible credentials at the last health sweep, by service and health status.",
	}, []string{"service", "status"})
	subscribers := promclient.NewGaugeVec(promclient.GaugeOpts{
		Namespace: namespace,
		Name:      "assigned_subscribers",
		Help:      "Subscribers mapped onto visible credentials at the last health sweep, by service.",
	}, []string{"service"})

	var err error
	if assignments, err = register(reg, assignments); err != nil {
		return nil, fmt.Errorf("register assignments counter: %w", err)
	}
	if imports, err = register(reg, imports); err != nil {
		return nil, fmt.Errorf("register import counter: %w", err)
	}
	if credentials, err = register(reg, credentials); err != nil {
		return nil, fmt.Errorf("register credentials gauge: %w", err)
	}
	if subscribers, err = register(reg, subscribers); err != nil {
		return nil, fmt.Errorf("register subscribers gauge: %w", err)
	}

	return &Observer{
		assignments: assignments,
		imports:     imports,
		credentials: credentials,
		subscribers: subscribers,
	}, nil
}

// register adds c to reg, returning the collector already registered under
// the same descriptor when there is one.
func register[C promclient.Collector](reg promclient.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are promclient.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	var zero C
	return zero, err
}

// ObserveAssignment increments the assignment counter for the result's outcome.
func (o *Observer) ObserveAssignment(service string, a model.Assignment) {
	if o == nil {
		return
	}
	o.assignments.WithLabelValues(serviceLabel(service), outcome(a)).Inc()
}

// ObserveImport adds the imported and failed row counts.
func (o *Observer) ObserveImport(service string, imported, failed int) {
	if o == nil {
		return
	}
	label := serviceLabel(service)
	o.imports.WithLabelValues(label, "imported").Add(float64(imported))
	o.imports.WithLabelValues(label, "failed").Add(float64(failed))
}

// ObserveCredentialHealth replaces the health gauges with the sweep result.
// Hidden credentials are left out.
func (o *Observer) ObserveCredentialHealth(loads []model.CredentialLoad) {
	if o == nil {
		return
	}
	o.credentials.Reset()
	o.subscribers.Reset()
	for _, l := range loads {
		if !l.Credential.Visible {
			continue
		}
		service := serviceLabel(l.Credential.Service)
		o.credentials.WithLabelValues(service, string(l.Health.Status)).Inc()
		o.subscribers.WithLabelValues(service).Add(float64(l.Subscribers))
	}
}

func outcome(a model.Assignment) string {
	switch {
	case a.Credential == nil:
		return outcomeUnavailable
	case a.Manual:
		return outcomeManual
	case a.Overflow:
		return outcomeOverflow
	default:
		return outcomeAssigned
	}
}

// serviceLabel keeps label cardinality down by lower-casing service names.
func serviceLabel(service string) string {
	return strings.ToLower(strings.TrimSpace(service))
}
