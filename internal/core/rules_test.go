package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"innozone/internal/infra/persistence/memory"
	"innozone/pkg/domain"
)

func newGovernedStore() *memory.Store {
	return memory.NewStore(NewDefaultRulesEngine())
}

func ptrTime(value time.Time) *time.Time {
	return &value
}

func admitForTest(t *testing.T, store *memory.Store, code string) InnovationProject {
	t.Helper()
	var project InnovationProject
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		p, err := tx.CreateProject(InnovationProject{
			Code:            code,
			Title:           "Test Project",
			Team:            "labs",
			Stage:           StageConcept,
			BudgetAllocated: 10000,
			IsActive:        true,
		})
		if err != nil {
			return err
		}
		project = p
		return nil
	}); err != nil {
		t.Fatalf("admit fixture: %v", err)
	}
	return project
}

func TestStageTransitionBlocksSkipping(t *testing.T) {
	store := newGovernedStore()
	project := admitForTest(t, store, "IZ-010")

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateProject(project.ID, func(p *InnovationProject) error {
			p.Stage = StagePilot
			return nil
		})
		return err
	})
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected stage skip to be blocked, got %v", err)
	}
}

func TestStageTransitionBlocksLeavingMature(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	var project InnovationProject
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		p, err := tx.CreateProject(InnovationProject{Code: "IZ-011", Stage: StageMature, BudgetAllocated: 100, IsActive: true})
		if err != nil {
			return err
		}
		project = p
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateProject(project.ID, func(p *InnovationProject) error {
			p.Stage = StageScaling
			return nil
		})
		return err
	})
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected mature to be terminal, got %v", err)
	}
}

func TestGateApprovalRequiredForAdvance(t *testing.T) {
	store := newGovernedStore()
	project := admitForTest(t, store, "IZ-012")

	// No gate at all: blocked.
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateProject(project.ID, func(p *InnovationProject) error {
			p.Stage = StageFeasibility
			return nil
		})
		return err
	})
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected missing gate to block, got %v", err)
	}

	// Pending gate: still blocked.
	var gateID string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		g, err := tx.CreateGate(LifecycleGate{ProjectID: project.ID, Name: "concept review", FromStage: StageConcept, ToStage: StageFeasibility})
		if err != nil {
			return err
		}
		gateID = g.ID
		return nil
	}); err != nil {
		t.Fatalf("create gate: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateProject(project.ID, func(p *InnovationProject) error {
			p.Stage = StageFeasibility
			return nil
		})
		return err
	}); !errors.As(err, &rve) {
		t.Fatalf("expected pending gate to block, got %v", err)
	}

	// Approved gate: advancement commits.
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateGate(gateID, func(g *LifecycleGate) error {
			g.Status = GateApproved
			g.Approver = "dir"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("approve gate: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateProject(project.ID, func(p *InnovationProject) error {
			p.Stage = StageFeasibility
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("advance with approved gate: %v", err)
	}
}

func TestGateDecisionsAreFinal(t *testing.T) {
	store := newGovernedStore()
	project := admitForTest(t, store, "IZ-013")
	var gateID string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		g, err := tx.CreateGate(LifecycleGate{ProjectID: project.ID, FromStage: StageConcept, ToStage: StageFeasibility, Status: GateRejected})
		if err != nil {
			return err
		}
		gateID = g.ID
		return nil
	}); err != nil {
		t.Fatalf("seed gate: %v", err)
	}
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateGate(gateID, func(g *LifecycleGate) error {
			g.Status = GateApproved
			return nil
		})
		return err
	})
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected decided gate to be frozen, got %v", err)
	}
}

func TestBudgetDisciplineWarnsAndBlocks(t *testing.T) {
	store := newGovernedStore()
	project := admitForTest(t, store, "IZ-014")

	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateProject(project.ID, func(p *InnovationProject) error {
			p.BudgetSpent = 9000 // 90% of 10000
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("spend within tolerance: %v", err)
	}
	if len(res.Warnings()) == 0 {
		t.Fatalf("expected utilization warning, got %+v", res)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateProject(project.ID, func(p *InnovationProject) error {
			p.BudgetSpent = 11500 // beyond 110% tolerance
			return nil
		})
		return err
	})
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected overspend to block, got %v", err)
	}
}

func TestROIExemptionSuppressesWarning(t *testing.T) {
	exemptUntil := time.Now().UTC().Add(30 * 24 * time.Hour)
	store := newGovernedStore()

	var exemptID, lapsedID string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		p1, err := tx.CreateProject(InnovationProject{Code: "IZ-015", Stage: StagePilot, BudgetAllocated: 100, ROITarget: 2, ROICurrent: 0.5, ROIExemptUntil: &exemptUntil, IsActive: true})
		if err != nil {
			return err
		}
		exemptID = p1.ID
		p2, err := tx.CreateProject(InnovationProject{Code: "IZ-016", Stage: StagePilot, BudgetAllocated: 100, ROITarget: 2, ROICurrent: 0.5, IsActive: true})
		if err != nil {
			return err
		}
		lapsedID = p2.ID
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateProject(exemptID, func(p *InnovationProject) error {
			p.ROICurrent = 0.4
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("exempt update: %v", err)
	}
	for _, w := range res.Warnings() {
		if w.Rule == "roi_exemption" {
			t.Fatalf("exempt project must not warn: %+v", w)
		}
	}

	res, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateProject(lapsedID, func(p *InnovationProject) error {
			p.ROICurrent = 0.4
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("lapsed update: %v", err)
	}
	found := false
	for _, w := range res.Warnings() {
		if w.Rule == "roi_exemption" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ROI warning for lapsed exemption, got %+v", res)
	}
}

func TestActiveReferenceBlocksRetiredMutation(t *testing.T) {
	store := newGovernedStore()
	project := admitForTest(t, store, "IZ-017")
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateProject(project.ID, func(p *InnovationProject) error {
			p.IsActive = false
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("retire: %v", err)
	}

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateProject(project.ID, func(p *InnovationProject) error {
			p.BudgetSpent = 10
			return nil
		})
		return err
	})
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected retired project mutation to block, got %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateMilestone(Milestone{ProjectID: project.ID, Name: "late", Weight: 1, DueAt: ptrTime(time.Now())})
		return err
	})
	if !errors.As(err, &rve) {
		t.Fatalf("expected milestone on retired project to block, got %v", err)
	}
}

func TestActiveReferenceBlocksMissingParent(t *testing.T) {
	store := newGovernedStore()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateGate(domain.LifecycleGate{ProjectID: "ghost", FromStage: StageConcept, ToStage: StageFeasibility})
		return err
	})
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected gate with missing project to block, got %v", err)
	}
}
