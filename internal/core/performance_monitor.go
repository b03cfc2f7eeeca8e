package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultHistoryLimit = 12

// PerformanceMonitor aggregates project metrics into point-in-time snapshots,
// runs anomaly watches against each one, and keeps a bounded history ring per
// project for trend analysis.
type PerformanceMonitor struct {
	mu           sync.Mutex
	store        PersistentStore
	watches      []AnomalyWatch
	metrics      *Metrics
	history      map[string][]PerformanceSnapshot
	engagement   map[string]float64
	historyLimit int
	nowFn        func() time.Time
}

// NewPerformanceMonitor constructs a monitor over the store. Metrics may be
// nil when no Prometheus registry is wired.
func NewPerformanceMonitor(store PersistentStore, watches []AnomalyWatch, metrics *Metrics) *PerformanceMonitor {
	return &PerformanceMonitor{
		store:        store,
		watches:      watches,
		metrics:      metrics,
		history:      make(map[string][]PerformanceSnapshot),
		engagement:   make(map[string]float64),
		historyLimit: defaultHistoryLimit,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

// AddWatch appends a compiled anomaly watch.
func (m *PerformanceMonitor) AddWatch(watch AnomalyWatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watches = append(m.watches, watch)
}

// RecordEngagement folds an observed engagement score into the project's
// running value using an exponential moving average.
func (m *PerformanceMonitor) RecordEngagement(projectID string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.engagement[projectID]; ok {
		m.engagement[projectID] = 0.7*prev + 0.3*score
		return
	}
	m.engagement[projectID] = score
}

// Snapshot computes a fresh performance snapshot for the project, evaluates
// anomaly watches, appends it to the history ring and updates gauges.
func (m *PerformanceMonitor) Snapshot(_ context.Context, projectID string) (PerformanceSnapshot, error) {
	project, ok := m.store.GetProject(projectID)
	if !ok {
		return PerformanceSnapshot{}, ErrNotFound{Entity: EntityProject, ID: projectID}
	}
	now := m.nowFn()

	snapshot := PerformanceSnapshot{
		ProjectID: projectID,
		TakenAt:   now,
	}
	if project.BudgetAllocated > 0 {
		snapshot.BudgetUtilization = project.BudgetSpent / project.BudgetAllocated
	}
	if project.ROITarget > 0 {
		snapshot.ROIRatio = project.ROICurrent / project.ROITarget
	}
	snapshot.MilestoneCompletion, snapshot.ScheduleSlipDays = m.milestoneProgress(projectID, now)

	m.mu.Lock()
	snapshot.EngagementScore = m.engagement[projectID]
	watches := append([]AnomalyWatch(nil), m.watches...)
	m.mu.Unlock()

	metricMap := snapshot.MetricMap()
	for _, watch := range watches {
		fired, err := watch.Triggered(metricMap)
		if err != nil {
			return PerformanceSnapshot{}, fmt.Errorf("anomaly watch: %w", err)
		}
		if fired {
			snapshot.Anomalies = append(snapshot.Anomalies, watch.Name)
		}
	}
	snapshot.AnomalyCount = len(snapshot.Anomalies)

	m.mu.Lock()
	ring := append(m.history[projectID], snapshot)
	if over := len(ring) - m.historyLimit; over > 0 {
		ring = append([]PerformanceSnapshot(nil), ring[over:]...)
	}
	m.history[projectID] = ring
	m.mu.Unlock()

	m.metrics.ObserveSnapshot(snapshot)
	return snapshot, nil
}

// History returns a copy of the snapshot ring for the project, oldest first.
func (m *PerformanceMonitor) History(projectID string) []PerformanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PerformanceSnapshot(nil), m.history[projectID]...)
}

func (m *PerformanceMonitor) milestoneProgress(projectID string, now time.Time) (completion, slipDays float64) {
	var totalWeight, doneWeight float64
	for _, milestone := range m.store.ListMilestones() {
		if milestone.ProjectID != projectID {
			continue
		}
		totalWeight += milestone.Weight
		if milestone.CompletedAt != nil {
			doneWeight += milestone.Weight
			continue
		}
		if milestone.DueAt != nil && now.After(*milestone.DueAt) {
			days := now.Sub(*milestone.DueAt).Hours() / 24
			if days > slipDays {
				slipDays = days
			}
		}
	}
	if totalWeight > 0 {
		completion = doneWeight / totalWeight
	}
	return completion, slipDays
}
