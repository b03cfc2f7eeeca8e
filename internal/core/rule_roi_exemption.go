package core

import (
	"context"
	"fmt"
	"time"

	"innozone/pkg/domain"
)

// NewROIExemptionRule returns the rule surfacing ROI shortfalls on projects
// whose exemption window has lapsed. The violation is a warning; acting on
// sustained shortfall is the decision engine's responsibility.
func NewROIExemptionRule() domain.Rule {
	return roiExemptionRule{nowFn: func() time.Time { return time.Now().UTC() }}
}

type roiExemptionRule struct {
	nowFn func() time.Time
}

func (roiExemptionRule) Name() string { return "roi_exemption" }

func (r roiExemptionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	now := r.nowFn()
	res := domain.Result{}
	seen := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != EntityProject || change.Action == ActionDelete {
			continue
		}
		after, ok := change.After.(InnovationProject)
		if !ok {
			continue
		}
		if _, dup := seen[after.ID]; dup {
			continue
		}
		seen[after.ID] = struct{}{}
		if after.ROIExempt(now) {
			continue
		}
		if domain.StageIndex(after.Stage) < domain.StageIndex(StagePilot) {
			continue
		}
		if after.ROITarget > 0 && after.ROICurrent < after.ROITarget {
			res.Violations = append(res.Violations, violation("roi_exemption", SeverityWarn,
				fmt.Sprintf("project %s ROI %.2f below target %.2f with no exemption in force", after.Code, after.ROICurrent, after.ROITarget), EntityProject, after.ID))
		}
	}
	return res, nil
}
