package tracker

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonathan/application-tracker/internal/types"
)

// Metrics holds the domain counters. A nil *Metrics records nothing.
type Metrics struct {
	Created       prometheus.Counter
	StatusChanges *prometheus.CounterVec
	ImportRows    *prometheus.CounterVec
}

// NewMetrics registers the tracker counters with reg, reusing collectors that
// are already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	created, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Name:      "applications_created_total",
		Help:      "Applications created through the API or an import.",
	}))
	if err != nil {
		return nil, err
	}
	changes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Name:      "status_changes_total",
		Help:      "Status transitions partitioned by the new status.",
	}, []string{"status"}))
	if err != nil {
		return nil, err
	}
	rows, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Name:      "import_rows_total",
		Help:      "Imported CSV rows partitioned by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	return &Metrics{Created: created, StatusChanges: changes, ImportRows: rows}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

func (m *Metrics) created(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Created.Add(float64(n))
}

func (m *Metrics) statusChanged(to types.Status) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) imported(created, failed int) {
	if m == nil {
		return
	}
	m.created(created)
	m.ImportRows.WithLabelValues("created").Add(float64(created))
	m.ImportRows.WithLabelValues("failed").Add(float64(failed))
}
