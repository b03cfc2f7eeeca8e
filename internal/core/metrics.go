package core

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes governance gauges and counters on a Prometheus registry.
type Metrics struct {
	budgetUtilization   *prometheus.GaugeVec
	milestoneCompletion *prometheus.GaugeVec
	engagementScore     *prometheus.GaugeVec
	anomaliesTotal      *prometheus.CounterVec
	decisionsApplied    *prometheus.CounterVec
}

// NewMetrics builds the collector set and registers it on reg. A nil registry
// leaves the collectors usable but unregistered, which keeps tests isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		budgetUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "innozone",
			Name:      "project_budget_utilization",
			Help:      "Spent over allocated budget per project.",
		}, []string{"project"}),
		milestoneCompletion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "innozone",
			Name:      "project_milestone_completion",
			Help:      "Weighted milestone completion ratio per project.",
		}, []string{"project"}),
		engagementScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "innozone",
			Name:      "project_engagement_score",
			Help:      "Latest engagement score per project.",
		}, []string{"project"}),
		anomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "innozone",
			Name:      "project_anomalies_total",
			Help:      "Anomaly watch firings per project and watch.",
		}, []string{"project", "watch"}),
		decisionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "innozone",
			Name:      "decisions_applied_total",
			Help:      "Automatically applied decision recommendations by type.",
		}, []string{"decision"}),
	}
	if reg != nil {
		reg.MustRegister(m.budgetUtilization, m.milestoneCompletion, m.engagementScore, m.anomaliesTotal, m.decisionsApplied)
	}
	return m
}

// ObserveSnapshot updates the per-project gauges from a fresh snapshot.
func (m *Metrics) ObserveSnapshot(snapshot PerformanceSnapshot) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"project": snapshot.ProjectID}
	m.budgetUtilization.With(labels).Set(snapshot.BudgetUtilization)
	m.milestoneCompletion.With(labels).Set(snapshot.MilestoneCompletion)
	m.engagementScore.With(labels).Set(snapshot.EngagementScore)
	for _, watch := range snapshot.Anomalies {
		m.anomaliesTotal.With(prometheus.Labels{"project": snapshot.ProjectID, "watch": watch}).Inc()
	}
}

// ObserveDecisionApplied counts an auto-applied recommendation.
func (m *Metrics) ObserveDecisionApplied(decision DecisionType) {
	if m == nil {
		return
	}
	m.decisionsApplied.With(prometheus.Labels{"decision": string(decision)}).Inc()
}
