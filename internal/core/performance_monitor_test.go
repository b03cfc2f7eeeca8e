package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"innozone/internal/infra/persistence/memory"
)

func seedMonitoredProject(t *testing.T, store *memory.Store, spent float64) InnovationProject {
	t.Helper()
	var project InnovationProject
	now := time.Now().UTC()
	doneAt := now.Add(-time.Hour)
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		p, err := tx.CreateProject(InnovationProject{
			Code:            "IZ-030",
			Title:           "Monitored",
			Stage:           StagePrototype,
			BudgetAllocated: 1000,
			BudgetSpent:     spent,
			ROITarget:       2,
			ROICurrent:      1,
			IsActive:        true,
		})
		if err != nil {
			return err
		}
		project = p
		if _, err := tx.CreateMilestone(Milestone{ProjectID: p.ID, Name: "done", Weight: 3, DueAt: ptrTime(now.Add(-48 * time.Hour)), CompletedAt: &doneAt}); err != nil {
			return err
		}
		_, err = tx.CreateMilestone(Milestone{ProjectID: p.ID, Name: "overdue", Weight: 1, DueAt: ptrTime(now.Add(-10 * 24 * time.Hour))})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return project
}

func TestSnapshotAggregatesMetrics(t *testing.T) {
	store := memory.NewStore(nil)
	project := seedMonitoredProject(t, store, 500)
	monitor := NewPerformanceMonitor(store, nil, nil)
	monitor.RecordEngagement(project.ID, 0.9)

	snap, err := monitor.Snapshot(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.BudgetUtilization != 0.5 {
		t.Fatalf("expected utilization 0.5, got %.2f", snap.BudgetUtilization)
	}
	if snap.MilestoneCompletion != 0.75 {
		t.Fatalf("expected weighted completion 0.75, got %.2f", snap.MilestoneCompletion)
	}
	if snap.ScheduleSlipDays < 9.5 || snap.ScheduleSlipDays > 10.5 {
		t.Fatalf("expected ~10 slip days, got %.2f", snap.ScheduleSlipDays)
	}
	if snap.EngagementScore != 0.9 {
		t.Fatalf("expected engagement 0.9, got %.2f", snap.EngagementScore)
	}
	if snap.ROIRatio != 0.5 {
		t.Fatalf("expected roi ratio 0.5, got %.2f", snap.ROIRatio)
	}
}

func TestSnapshotIgnoresMilestonesWithoutDueDate(t *testing.T) {
	store := memory.NewStore(nil)
	var project InnovationProject
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		p, err := tx.CreateProject(InnovationProject{
			Code:            "IZ-031",
			Title:           "Undated",
			Stage:           StagePrototype,
			BudgetAllocated: 1000,
			IsActive:        true,
		})
		if err != nil {
			return err
		}
		project = p
		_, err = tx.CreateMilestone(Milestone{ProjectID: p.ID, Name: "open-ended", Weight: 1})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	monitor := NewPerformanceMonitor(store, nil, nil)

	snap, err := monitor.Snapshot(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.ScheduleSlipDays != 0 {
		t.Fatalf("expected no slip for undated milestone, got %.2f", snap.ScheduleSlipDays)
	}
}

func TestSnapshotUnknownProject(t *testing.T) {
	monitor := NewPerformanceMonitor(memory.NewStore(nil), nil, nil)
	if _, err := monitor.Snapshot(context.Background(), "ghost"); err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestAnomalyWatchesFireAndCount(t *testing.T) {
	store := memory.NewStore(nil)
	project := seedMonitoredProject(t, store, 1200) // 120% utilization
	watches, err := DefaultAnomalyWatches()
	if err != nil {
		t.Fatalf("default watches: %v", err)
	}
	monitor := NewPerformanceMonitor(store, watches, NewMetrics(prometheus.NewRegistry()))

	snap, err := monitor.Snapshot(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.AnomalyCount == 0 {
		t.Fatalf("expected budget_overrun watch to fire")
	}
	found := false
	for _, name := range snap.Anomalies {
		if name == "budget_overrun" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected budget_overrun in %v", snap.Anomalies)
	}
}

func TestCompileAnomalyWatchRejectsNonBool(t *testing.T) {
	if _, err := CompileAnomalyWatch("bad", `snap["budget_utilization"] + 1.0`); err == nil {
		t.Fatalf("expected type mismatch error")
	}
	if _, err := CompileAnomalyWatch("", `snap["x"] > 1.0`); err == nil {
		t.Fatalf("expected name required error")
	}
}

func TestHistoryRingIsBounded(t *testing.T) {
	store := memory.NewStore(nil)
	project := seedMonitoredProject(t, store, 100)
	monitor := NewPerformanceMonitor(store, nil, nil)
	monitor.historyLimit = 3

	for i := 0; i < 5; i++ {
		if _, err := monitor.Snapshot(context.Background(), project.ID); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
	}
	if got := len(monitor.History(project.ID)); got != 3 {
		t.Fatalf("expected ring bounded to 3, got %d", got)
	}
}

func TestEngagementMovingAverage(t *testing.T) {
	monitor := NewPerformanceMonitor(memory.NewStore(nil), nil, nil)
	monitor.RecordEngagement("p", 1.0)
	monitor.RecordEngagement("p", 0.0)
	got := monitor.engagement["p"]
	if got < 0.69 || got > 0.71 {
		t.Fatalf("expected EWMA near 0.7, got %.2f", got)
	}
}
