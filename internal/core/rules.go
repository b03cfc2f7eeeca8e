package core

import "innozone/pkg/domain"

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in governance
// policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewStageTransitionRule())
	engine.Register(NewGateApprovalRule())
	engine.Register(NewBudgetDisciplineRule())
	engine.Register(NewROIExemptionRule())
	engine.Register(NewActiveReferenceRule())
	return engine
}
