package core

import (
	"context"
	"fmt"

	"innozone/pkg/domain"
)

// NewGateApprovalRule returns the rule requiring an approved or waived gate
// for every crossed stage boundary, and freezing gate decisions once made.
func NewGateApprovalRule() domain.Rule {
	return gateApprovalRule{}
}

type gateApprovalRule struct{}

func (gateApprovalRule) Name() string { return "gate_approval" }

func (gateApprovalRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		switch change.Entity {
		case EntityProject:
			if change.Action != ActionUpdate {
				continue
			}
			before, okB := change.Before.(InnovationProject)
			after, okA := change.After.(InnovationProject)
			if !okB || !okA {
				continue
			}
			if !isAdvancement(before.Stage, after.Stage) {
				continue
			}
			gate, found := boundaryGate(view, after.ID, before.Stage, after.Stage)
			switch {
			case !found:
				res.Violations = append(res.Violations, violation("gate_approval", SeverityBlock,
					fmt.Sprintf("project %s has no gate for boundary %s->%s", before.Code, before.Stage, after.Stage), EntityProject, after.ID))
			case gate.Status != GateApproved && gate.Status != GateWaived:
				res.Violations = append(res.Violations, violation("gate_approval", SeverityBlock,
					fmt.Sprintf("gate %q for %s->%s is %s; approval or waiver required", gate.Name, before.Stage, after.Stage, gate.Status), EntityGate, gate.ID))
			}
		case EntityGate:
			if change.Action != ActionUpdate {
				continue
			}
			before, okB := change.Before.(LifecycleGate)
			after, okA := change.After.(LifecycleGate)
			if !okB || !okA {
				continue
			}
			if before.Status != GatePending && before.Status != after.Status {
				res.Violations = append(res.Violations, violation("gate_approval", SeverityBlock,
					fmt.Sprintf("gate %q already decided (%s); decisions are final", before.Name, before.Status), EntityGate, after.ID))
			}
		}
	}
	return res, nil
}

func isAdvancement(from, to ProjectStage) bool {
	fi, ti := domain.StageIndex(from), domain.StageIndex(to)
	return fi >= 0 && ti == fi+1
}

func boundaryGate(view domain.RuleView, projectID string, from, to ProjectStage) (LifecycleGate, bool) {
	for _, gate := range view.ListGates() {
		if gate.ProjectID == projectID && gate.FromStage == from && gate.ToStage == to {
			return gate, true
		}
	}
	return LifecycleGate{}, false
}
