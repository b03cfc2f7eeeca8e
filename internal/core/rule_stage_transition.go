package core

import (
	"context"
	"fmt"

	"innozone/pkg/domain"
)

// NewStageTransitionRule returns the in-transaction rule enforcing the linear
// stage machine: no skipping, mature is terminal, halted may only return to
// the stage held before the halt.
func NewStageTransitionRule() domain.Rule {
	return stageTransitionRule{}
}

type stageTransitionRule struct{}

func (stageTransitionRule) Name() string { return "stage_transition" }

var knownStages = func() map[ProjectStage]struct{} {
	set := make(map[ProjectStage]struct{}, len(domain.StageOrder)+1)
	for _, s := range domain.StageOrder {
		set[s] = struct{}{}
	}
	set[StageHalted] = struct{}{}
	return set
}()

func (stageTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != EntityProject {
			continue
		}
		switch change.Action {
		case ActionCreate:
			after, ok := change.After.(InnovationProject)
			if !ok {
				continue
			}
			if _, known := knownStages[after.Stage]; !known {
				res.Violations = append(res.Violations, violation("stage_transition", SeverityBlock,
					fmt.Sprintf("project %s created with unknown stage %q", after.Code, after.Stage), EntityProject, after.ID))
			}
		case ActionUpdate:
			before, okB := change.Before.(InnovationProject)
			after, okA := change.After.(InnovationProject)
			if !okB || !okA || before.Stage == after.Stage {
				continue
			}
			if msg, ok := illegalTransition(before, after); ok {
				res.Violations = append(res.Violations, violation("stage_transition", SeverityBlock, msg, EntityProject, after.ID))
			}
		}
	}
	return res, nil
}

func illegalTransition(before, after InnovationProject) (string, bool) {
	if _, known := knownStages[after.Stage]; !known {
		return fmt.Sprintf("project %s moved to unknown stage %q", before.Code, after.Stage), true
	}
	switch before.Stage {
	case StageMature:
		return fmt.Sprintf("project %s is mature; no further transitions allowed", before.Code), true
	case StageHalted:
		if before.PriorStage == nil {
			return fmt.Sprintf("project %s halted without a recorded prior stage", before.Code), true
		}
		if after.Stage != *before.PriorStage {
			return fmt.Sprintf("project %s may only resume to %s, not %s", before.Code, *before.PriorStage, after.Stage), true
		}
		return "", false
	}
	if after.Stage == StageHalted {
		return "", false
	}
	next, ok := domain.NextStage(before.Stage)
	if !ok || after.Stage != next {
		return fmt.Sprintf("project %s cannot move %s -> %s; stages advance one at a time", before.Code, before.Stage, after.Stage), true
	}
	return "", false
}

func violation(rule string, severity Severity, message string, entity EntityType, id string) Violation {
	return Violation{Rule: rule, Severity: severity, Message: message, Entity: entity, EntityID: id}
}
