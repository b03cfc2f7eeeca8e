package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"innozone/pkg/domain"
)

// DefaultDecisionRules returns the built-in weighted-criteria table. Operators
// can re-weight or replace entries via a YAML overlay without rebuilding.
func DefaultDecisionRules() []DecisionRule {
	return []DecisionRule{
		{
			Decision: domain.DecisionAdvance,
			Stages: []ProjectStage{
				StageConcept, StageFeasibility, StagePrototype, StagePilot, StageScaling,
			},
			Criteria: []DecisionCriterion{
				{Metric: domain.MetricMilestoneCompletion, Comparison: domain.CompareGTE, Threshold: 0.8, Weight: 3},
				{Metric: domain.MetricBudgetUtilization, Comparison: domain.CompareLTE, Threshold: 0.9, Weight: 2},
				{Metric: domain.MetricEngagementScore, Comparison: domain.CompareGTE, Threshold: 0.6, Weight: 1},
				{Metric: domain.MetricROIRatio, Comparison: domain.CompareGTE, Threshold: 1.0, Weight: 2, ROIBased: true},
			},
			MinConfidence: 0.6,
			BaseUrgency:   0.5,
			BaseImpact:    0.6,
		},
		{
			Decision: domain.DecisionHold,
			Criteria: []DecisionCriterion{
				{Metric: domain.MetricScheduleSlipDays, Comparison: domain.CompareGT, Threshold: 14, Weight: 2},
				{Metric: domain.MetricBudgetUtilization, Comparison: domain.CompareGTE, Threshold: 0.9, Weight: 1},
			},
			MinConfidence: 0.5,
			BaseUrgency:   0.55,
			BaseImpact:    0.4,
		},
		{
			Decision: domain.DecisionHalt,
			Criteria: []DecisionCriterion{
				{Metric: domain.MetricMilestoneCompletion, Comparison: domain.CompareLTE, Threshold: 0.25, Weight: 2},
				{Metric: domain.MetricBudgetUtilization, Comparison: domain.CompareGT, Threshold: 1.1, Weight: 3},
				{Metric: domain.MetricROIRatio, Comparison: domain.CompareLT, Threshold: 0.5, Weight: 2, ROIBased: true},
				{Metric: domain.MetricAnomalyCount, Comparison: domain.CompareGTE, Threshold: 3, Weight: 1},
			},
			MinConfidence: 0.65,
			BaseUrgency:   0.8,
			BaseImpact:    0.9,
		},
		{
			Decision: domain.DecisionExtendExemption,
			Stages: []ProjectStage{
				StageConcept, StageFeasibility, StagePrototype,
			},
			Criteria: []DecisionCriterion{
				{Metric: domain.MetricMilestoneCompletion, Comparison: domain.CompareGTE, Threshold: 0.5, Weight: 1},
				{Metric: domain.MetricROIRatio, Comparison: domain.CompareLT, Threshold: 1.0, Weight: 2},
			},
			MinConfidence: 0.5,
			BaseUrgency:   0.4,
			BaseImpact:    0.3,
		},
		{
			Decision: domain.DecisionReallocateBudget,
			Criteria: []DecisionCriterion{
				{Metric: domain.MetricBudgetUtilization, Comparison: domain.CompareLTE, Threshold: 0.4, Weight: 2},
				{Metric: domain.MetricMilestoneCompletion, Comparison: domain.CompareGTE, Threshold: 0.6, Weight: 1},
			},
			MinConfidence: 0.5,
			BaseUrgency:   0.3,
			BaseImpact:    0.5,
		},
	}
}

// LoadDecisionRules merges the default table with the YAML overlay at path.
// Overlay entries replace defaults with the same decision type; new decision
// types are appended. An empty path returns the defaults unchanged.
func LoadDecisionRules(path string) ([]DecisionRule, error) {
	rules := DefaultDecisionRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read decision rules: %w", err)
	}
	var overlay []DecisionRule
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("decode decision rules: %w", err)
	}
	for _, entry := range overlay {
		if err := validateDecisionRule(entry); err != nil {
			return nil, err
		}
		replaced := false
		for i, existing := range rules {
			if existing.Decision == entry.Decision {
				rules[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			rules = append(rules, entry)
		}
	}
	return rules, nil
}

func validateDecisionRule(rule DecisionRule) error {
	if rule.Decision == "" {
		return fmt.Errorf("decision rule missing decision type")
	}
	if len(rule.Criteria) == 0 {
		return fmt.Errorf("decision rule %s has no criteria", rule.Decision)
	}
	for _, c := range rule.Criteria {
		if c.Metric == "" {
			return fmt.Errorf("decision rule %s has a criterion without a metric", rule.Decision)
		}
		if c.Weight <= 0 {
			return fmt.Errorf("decision rule %s criterion %s needs a positive weight", rule.Decision, c.Metric)
		}
	}
	return nil
}
