package core

import "innozone/pkg/domain"

type (
	EntityType             = domain.EntityType
	ProjectStage           = domain.ProjectStage
	GateStatus             = domain.GateStatus
	DecisionType           = domain.DecisionType
	Severity               = domain.Severity
	Base                   = domain.Base
	InnovationProject      = domain.InnovationProject
	Milestone              = domain.Milestone
	LifecycleGate          = domain.LifecycleGate
	DecisionCriterion      = domain.DecisionCriterion
	DecisionRule           = domain.DecisionRule
	DecisionRecommendation = domain.DecisionRecommendation
	PerformanceSnapshot    = domain.PerformanceSnapshot
	Change                 = domain.Change
	Action                 = domain.Action
	Violation              = domain.Violation
	Result                 = domain.Result
	RuleViolationError     = domain.RuleViolationError
	Rule                   = domain.Rule
	RulesEngine            = domain.RulesEngine
	Transaction            = domain.Transaction
	TransactionView        = domain.TransactionView
	PersistentStore        = domain.PersistentStore
)

const (
	EntityProject        = domain.EntityProject
	EntityMilestone      = domain.EntityMilestone
	EntityGate           = domain.EntityGate
	EntityRecommendation = domain.EntityRecommendation
)

const (
	StageConcept     = domain.StageConcept
	StageFeasibility = domain.StageFeasibility
	StagePrototype   = domain.StagePrototype
	StagePilot       = domain.StagePilot
	StageScaling     = domain.StageScaling
	StageMature      = domain.StageMature
	StageHalted      = domain.StageHalted
)

const (
	GatePending  = domain.GatePending
	GateApproved = domain.GateApproved
	GateRejected = domain.GateRejected
	GateWaived   = domain.GateWaived
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
