package core

import (
	"context"
	"fmt"

	"innozone/pkg/domain"
)

const (
	// budgetOverrunTolerance is the fraction beyond allocation tolerated
	// before spend is blocked outright.
	budgetOverrunTolerance = 0.10
	// budgetWarnUtilization is the utilization above which a warning is raised.
	budgetWarnUtilization = 0.85
)

// NewBudgetDisciplineRule returns the rule guarding project spend against its
// allocation.
func NewBudgetDisciplineRule() domain.Rule {
	return budgetDisciplineRule{}
}

type budgetDisciplineRule struct{}

func (budgetDisciplineRule) Name() string { return "budget_discipline" }

func (budgetDisciplineRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
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
		if change.Action == ActionUpdate {
			// Only spend increases are guarded; halting or retiring an
			// already-overspent project must stay possible.
			before, okB := change.Before.(InnovationProject)
			if !okB || after.BudgetSpent <= before.BudgetSpent {
				continue
			}
		}
		if _, dup := seen[after.ID]; dup {
			continue
		}
		seen[after.ID] = struct{}{}
		if after.BudgetAllocated <= 0 {
			if after.BudgetSpent > 0 {
				res.Violations = append(res.Violations, violation("budget_discipline", SeverityBlock,
					fmt.Sprintf("project %s records spend without a budget allocation", after.Code), EntityProject, after.ID))
			}
			continue
		}
		utilization := after.BudgetSpent / after.BudgetAllocated
		switch {
		case utilization > 1+budgetOverrunTolerance:
			res.Violations = append(res.Violations, violation("budget_discipline", SeverityBlock,
				fmt.Sprintf("project %s spend %.2f exceeds allocation %.2f beyond tolerance", after.Code, after.BudgetSpent, after.BudgetAllocated), EntityProject, after.ID))
		case utilization > budgetWarnUtilization:
			res.Violations = append(res.Violations, violation("budget_discipline", SeverityWarn,
				fmt.Sprintf("project %s at %.0f%% budget utilization", after.Code, utilization*100), EntityProject, after.ID))
		}
	}
	return res, nil
}
