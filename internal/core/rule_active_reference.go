package core

import (
	"context"
	"fmt"

	"innozone/pkg/domain"
)

// NewActiveReferenceRule returns the rule blocking mutations against retired
// projects and child records pointing at missing or retired projects.
func NewActiveReferenceRule() domain.Rule {
	return activeReferenceRule{}
}

type activeReferenceRule struct{}

func (activeReferenceRule) Name() string { return "active_reference" }

func (activeReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
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
			if !before.IsActive {
				res.Violations = append(res.Violations, violation("active_reference", SeverityBlock,
					fmt.Sprintf("project %s is retired and cannot be modified", before.Code), EntityProject, after.ID))
			}
		case EntityMilestone:
			if change.Action != ActionCreate {
				continue
			}
			m, ok := change.After.(Milestone)
			if !ok {
				continue
			}
			if v, bad := inactiveParent(view, m.ProjectID, EntityMilestone, m.ID); bad {
				res.Violations = append(res.Violations, v)
			}
		case EntityGate:
			if change.Action != ActionCreate {
				continue
			}
			g, ok := change.After.(LifecycleGate)
			if !ok {
				continue
			}
			if v, bad := inactiveParent(view, g.ProjectID, EntityGate, g.ID); bad {
				res.Violations = append(res.Violations, v)
			}
		}
	}
	return res, nil
}

func inactiveParent(view domain.RuleView, projectID string, entity EntityType, id string) (Violation, bool) {
	project, ok := view.FindProject(projectID)
	if !ok {
		return violation("active_reference", SeverityBlock,
			fmt.Sprintf("%s references missing project %s", entity, projectID), entity, id), true
	}
	if !project.IsActive {
		return violation("active_reference", SeverityBlock,
			fmt.Sprintf("%s references retired project %s", entity, project.Code), entity, id), true
	}
	return Violation{}, false
}
