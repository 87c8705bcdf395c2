// Package metrics exposes Prometheus counters for token issuance and check-ins.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gathering-portal/backend/internal/models"
)

// Attendance implements attendance.Metrics.
type Attendance struct {
	tokensIssued *prometheus.CounterVec
	checkIns     *prometheus.CounterVec
	jobs         *prometheus.CounterVec
}

// NewAttendance registers the attendance counters on reg.
func NewAttendance(reg prometheus.Registerer) *Attendance {
	m := &Attendance{
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "attendance",
			Name:      "tokens_issued_total",
			Help:      "Check-in tokens issued, by category.",
		}, []string{"category"}),
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "attendance",
			Name:      "check_ins_total",
			Help:      "Check-in attempts, by category and outcome.",
		}, []string{"category", "outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Background jobs processed, by type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(m.tokensIssued, m.checkIns, m.jobs)
	return m
}

// TokenIssued counts one issued token.
func (m *Attendance) TokenIssued(category models.Category) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(string(category)).Inc()
}

// CheckIn counts one check-in attempt.
func (m *Attendance) CheckIn(category models.Category, outcome string) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(string(category), outcome).Inc()
}

// Job counts one processed background job; result is "ok", "retry" or "dead".
func (m *Attendance) Job(jobType, result string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(jobType, result).Inc()
}
