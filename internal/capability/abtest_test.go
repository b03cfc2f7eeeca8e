package capability

import (
	"context"
	"math"
	"testing"

	"innozone/internal/infra/persistence/memory"
	"innozone/pkg/domain"
)

func newExperimentFixture(t *testing.T) (*Experiments, domain.PersistentStore) {
	t.Helper()
	store := memory.NewStore(nil)
	return NewExperiments(store), store
}

func runTrials(t *testing.T, exps *Experiments, id, variant string, successes, failures int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < successes; i++ {
		if _, err := exps.RecordTrial(ctx, id, variant, true); err != nil {
			t.Fatalf("record success: %v", err)
		}
	}
	for i := 0; i < failures; i++ {
		if _, err := exps.RecordTrial(ctx, id, variant, false); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
}

func TestStartValidatesInput(t *testing.T) {
	exps, _ := newExperimentFixture(t)
	ctx := context.Background()
	if _, err := exps.Start(ctx, "", "a", "b"); err == nil {
		t.Fatalf("expected capability validation")
	}
	if _, err := exps.Start(ctx, "sentiment", "a", ""); err == nil {
		t.Fatalf("expected variant validation")
	}
	if _, err := exps.Start(ctx, "sentiment", "a", "a"); err == nil {
		t.Fatalf("expected distinct variants")
	}
	if _, err := exps.Start(ctx, "sentiment", "v1", "v2"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := exps.Start(ctx, "sentiment", "v2", "v3"); err == nil {
		t.Fatalf("expected single running experiment per capability")
	}
}

func TestConcludeNamesSignificantWinner(t *testing.T) {
	exps, _ := newExperimentFixture(t)
	ctx := context.Background()
	exp, err := exps.Start(ctx, "sentiment", "v1", "v2")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// 90% vs 50% over 100 trials each is decisively significant
	runTrials(t, exps, exp.ID, "v1", 90, 10)
	runTrials(t, exps, exp.ID, "v2", 50, 50)

	concluded, err := exps.Conclude(ctx, exp.ID)
	if err != nil {
		t.Fatalf("conclude: %v", err)
	}
	if concluded.Status != domain.ExperimentConcluded {
		t.Fatalf("status = %s", concluded.Status)
	}
	if concluded.Winner != "v1" {
		t.Fatalf("winner = %q", concluded.Winner)
	}
	if concluded.ZScore < 1.96 {
		t.Fatalf("z = %f, expected significance", concluded.ZScore)
	}
}

func TestConcludeDeclaresNoWinnerWithoutSignificance(t *testing.T) {
	exps, _ := newExperimentFixture(t)
	ctx := context.Background()
	exp, err := exps.Start(ctx, "search", "v1", "v2")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	runTrials(t, exps, exp.ID, "v1", 11, 9)
	runTrials(t, exps, exp.ID, "v2", 10, 10)

	concluded, err := exps.Conclude(ctx, exp.ID)
	if err != nil {
		t.Fatalf("conclude: %v", err)
	}
	if concluded.Winner != "" {
		t.Fatalf("winner = %q, want none", concluded.Winner)
	}
	if math.Abs(concluded.ZScore) >= 1.96 {
		t.Fatalf("z = %f unexpectedly significant", concluded.ZScore)
	}
}

func TestConcludeRequiresTrialsOnBothVariants(t *testing.T) {
	exps, _ := newExperimentFixture(t)
	ctx := context.Background()
	exp, err := exps.Start(ctx, "codegen", "v1", "v2")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	runTrials(t, exps, exp.ID, "v1", 5, 0)
	if _, err := exps.Conclude(ctx, exp.ID); err == nil {
		t.Fatalf("expected error with untested variant")
	}
}

func TestRecordTrialRejectsUnknownVariantAndConcludedExperiment(t *testing.T) {
	exps, _ := newExperimentFixture(t)
	ctx := context.Background()
	exp, err := exps.Start(ctx, "sentiment", "v1", "v2")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := exps.RecordTrial(ctx, exp.ID, "v9", true); err == nil {
		t.Fatalf("expected unknown variant error")
	}
	runTrials(t, exps, exp.ID, "v1", 20, 0)
	runTrials(t, exps, exp.ID, "v2", 1, 19)
	if _, err := exps.Conclude(ctx, exp.ID); err != nil {
		t.Fatalf("conclude: %v", err)
	}
	if _, err := exps.RecordTrial(ctx, exp.ID, "v1", true); err == nil {
		t.Fatalf("expected concluded experiment error")
	}
}

func TestPreferredVariantUsesLatestConcludedWinner(t *testing.T) {
	exps, _ := newExperimentFixture(t)
	ctx := context.Background()

	if _, ok := exps.PreferredVariant("sentiment"); ok {
		t.Fatalf("expected no preference yet")
	}

	exp, err := exps.Start(ctx, "sentiment", "v1", "v2")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	runTrials(t, exps, exp.ID, "v1", 10, 90)
	runTrials(t, exps, exp.ID, "v2", 90, 10)
	if _, err := exps.Conclude(ctx, exp.ID); err != nil {
		t.Fatalf("conclude: %v", err)
	}

	winner, ok := exps.PreferredVariant("sentiment")
	if !ok || winner != "v2" {
		t.Fatalf("preference = (%q, %v), want v2", winner, ok)
	}
}
