package domain

import (
	"testing"
	"time"
)

func TestNextStageLinearProgression(t *testing.T) {
	cases := []struct {
		from ProjectStage
		want ProjectStage
		ok   bool
	}{
		{StageConcept, StageFeasibility, true},
		{StageFeasibility, StagePrototype, true},
		{StagePrototype, StagePilot, true},
		{StagePilot, StageScaling, true},
		{StageScaling, StageMature, true},
		{StageMature, "", false},
		{StageHalted, "", false},
		{ProjectStage("warp"), "", false},
	}
	for _, tc := range cases {
		got, ok := NextStage(tc.from)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("NextStage(%s) = %s,%v want %s,%v", tc.from, got, ok, tc.want, tc.ok)
		}
	}
}

func TestStageIndex(t *testing.T) {
	if idx := StageIndex(StageConcept); idx != 0 {
		t.Fatalf("concept index = %d", idx)
	}
	if idx := StageIndex(StageMature); idx != len(StageOrder)-1 {
		t.Fatalf("mature index = %d", idx)
	}
	if idx := StageIndex(StageHalted); idx != -1 {
		t.Fatalf("halted should not be in linear order, got %d", idx)
	}
}

func TestROIExemptInclusiveBoundary(t *testing.T) {
	until := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	project := InnovationProject{ROIExemptUntil: &until}

	if !project.ROIExempt(until.Add(-time.Hour)) {
		t.Fatalf("expected exemption before boundary")
	}
	if !project.ROIExempt(until) {
		t.Fatalf("expected exemption at the boundary instant")
	}
	if project.ROIExempt(until.Add(time.Second)) {
		t.Fatalf("expected exemption expired after boundary")
	}
	if (InnovationProject{}).ROIExempt(until) {
		t.Fatalf("nil exemption should never be exempt")
	}
}

func TestComparisonOpHolds(t *testing.T) {
	cases := []struct {
		op        ComparisonOp
		value     float64
		threshold float64
		want      bool
	}{
		{CompareGTE, 1.0, 1.0, true},
		{CompareGTE, 0.9, 1.0, false},
		{CompareLTE, 1.0, 1.0, true},
		{CompareLTE, 1.1, 1.0, false},
		{CompareGT, 1.1, 1.0, true},
		{CompareGT, 1.0, 1.0, false},
		{CompareLT, 0.9, 1.0, true},
		{CompareLT, 1.0, 1.0, false},
		{ComparisonOp("eq"), 1.0, 1.0, false},
	}
	for _, tc := range cases {
		if got := tc.op.Holds(tc.value, tc.threshold); got != tc.want {
			t.Fatalf("%s.Holds(%v,%v) = %v want %v", tc.op, tc.value, tc.threshold, got, tc.want)
		}
	}
}

func TestDecisionRuleAppliesTo(t *testing.T) {
	unscoped := DecisionRule{Decision: DecisionHold}
	if !unscoped.AppliesTo(StageConcept) || !unscoped.AppliesTo(StageMature) {
		t.Fatalf("unscoped rule should apply everywhere")
	}
	scoped := DecisionRule{Decision: DecisionAdvance, Stages: []ProjectStage{StagePilot, StageScaling}}
	if scoped.AppliesTo(StageConcept) {
		t.Fatalf("scoped rule should not apply to concept")
	}
	if !scoped.AppliesTo(StageScaling) {
		t.Fatalf("scoped rule should apply to scaling")
	}
}

func TestResultMergeAndBlocking(t *testing.T) {
	var res Result
	res.Merge(Result{})
	if len(res.Violations) != 0 {
		t.Fatalf("merging empty result should be a no-op")
	}
	res.Merge(Result{Violations: []Violation{{Rule: "a", Severity: SeverityWarn}}})
	if res.HasBlocking() {
		t.Fatalf("warn severity should not block")
	}
	res.Merge(Result{Violations: []Violation{{Rule: "b", Severity: SeverityBlock}}})
	if !res.HasBlocking() {
		t.Fatalf("block severity should block")
	}
	if warnings := res.Warnings(); len(warnings) != 1 || warnings[0].Rule != "a" {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestSnapshotMetricMap(t *testing.T) {
	snap := PerformanceSnapshot{
		BudgetUtilization:   0.8,
		MilestoneCompletion: 0.5,
		ScheduleSlipDays:    3,
		EngagementScore:     0.7,
		ROIRatio:            1.2,
		AnomalyCount:        2,
	}
	m := snap.MetricMap()
	if m[MetricBudgetUtilization] != 0.8 || m[MetricROIRatio] != 1.2 || m[MetricAnomalyCount] != 2 {
		t.Fatalf("unexpected metric map: %v", m)
	}
}

func TestGateBoundary(t *testing.T) {
	gate := LifecycleGate{FromStage: StageConcept, ToStage: StageFeasibility}
	if gate.Boundary() != "concept->feasibility" {
		t.Fatalf("unexpected boundary %s", gate.Boundary())
	}
}
