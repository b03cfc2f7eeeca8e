// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by innozone.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProject identifies an innovation project record.
	EntityProject EntityType = "project"
	// EntityMilestone identifies a milestone record.
	EntityMilestone EntityType = "milestone"
	// EntityGate identifies a lifecycle gate record.
	EntityGate EntityType = "gate"
	// EntityRecommendation identifies a persisted decision recommendation.
	EntityRecommendation EntityType = "recommendation"
	// EntityRelease identifies an adapter release record.
	EntityRelease EntityType = "release"
	// EntityExperiment identifies a capability experiment record.
	EntityExperiment EntityType = "experiment"
)

// ProjectStage represents the canonical project lifecycle stages.
type ProjectStage string

// Canonical project stages. Advancement is linear; halted and mature are terminal
// for the purposes of automatic progression (halted can be resumed explicitly).
const (
	StageConcept     ProjectStage = "concept"
	StageFeasibility ProjectStage = "feasibility"
	StagePrototype   ProjectStage = "prototype"
	StagePilot       ProjectStage = "pilot"
	StageScaling     ProjectStage = "scaling"
	StageMature      ProjectStage = "mature"
	// StageHalted parks a project outside the linear progression; the stage
	// held before the halt is retained for resume.
	StageHalted ProjectStage = "halted"
)

// StageOrder lists the linear progression stages in advancement order.
var StageOrder = []ProjectStage{
	StageConcept,
	StageFeasibility,
	StagePrototype,
	StagePilot,
	StageScaling,
	StageMature,
}

// NextStage returns the stage following s in the linear progression. The
// second return is false when s has no successor (mature, halted, unknown).
func NextStage(s ProjectStage) (ProjectStage, bool) {
	for i, stage := range StageOrder {
		if stage == s && i+1 < len(StageOrder) {
			return StageOrder[i+1], true
		}
	}
	return "", false
}

// StageIndex returns the position of s in the linear progression, or -1 when
// s is not part of it.
func StageIndex(s ProjectStage) int {
	for i, stage := range StageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// GateStatus enumerates lifecycle gate decision states.
type GateStatus string

// Gate statuses. Pending gates block advancement across their boundary.
const (
	GatePending  GateStatus = "pending"
	GateApproved GateStatus = "approved"
	GateRejected GateStatus = "rejected"
	GateWaived   GateStatus = "waived"
)

// DecisionType enumerates automated recommendation categories.
type DecisionType string

// Decision types produced by the objective decision engine.
const (
	DecisionAdvance          DecisionType = "advance"
	DecisionHold             DecisionType = "hold"
	DecisionHalt             DecisionType = "halt"
	DecisionExtendExemption  DecisionType = "extend_exemption"
	DecisionReallocateBudget DecisionType = "reallocate_budget"
)

// ReleaseStatus enumerates adapter release pipeline states.
type ReleaseStatus string

// Adapter release statuses as driven by the MLOps worker.
const (
	ReleaseSubmitted  ReleaseStatus = "submitted"
	ReleaseMerging    ReleaseStatus = "merging"
	ReleaseValidating ReleaseStatus = "validating"
	ReleaseDeploying  ReleaseStatus = "deploying"
	ReleaseDeployed   ReleaseStatus = "deployed"
	ReleaseSuperseded ReleaseStatus = "superseded"
	ReleaseRejected   ReleaseStatus = "rejected"
	ReleaseFailed     ReleaseStatus = "failed"
)

// ExperimentStatus enumerates capability experiment states.
type ExperimentStatus string

// Experiment statuses.
const (
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentConcluded ExperimentStatus = "concluded"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InnovationProject is a project admitted into the innovation zone.
type InnovationProject struct {
	Base
	Code            string        `json:"code"`
	Title           string        `json:"title"`
	Description     *string       `json:"description,omitempty"`
	Team            string        `json:"team"`
	Stage           ProjectStage  `json:"stage"`
	PriorStage      *ProjectStage `json:"prior_stage,omitempty"`
	BudgetAllocated float64       `json:"budget_allocated"`
	BudgetSpent     float64       `json:"budget_spent"`
	ROITarget       float64       `json:"roi_target"`
	ROICurrent      float64       `json:"roi_current"`
	ROIExemptUntil  *time.Time    `json:"roi_exempt_until,omitempty"`
	MilestoneIDs    []string      `json:"milestone_ids"`
	GateIDs         []string      `json:"gate_ids"`
	IsActive        bool          `json:"is_active"`
	HaltedReason    *string       `json:"halted_reason,omitempty"`
}

// ROIExempt reports whether the project's ROI exemption covers the instant at.
// The exemption is inclusive of the boundary instant.
func (p InnovationProject) ROIExempt(at time.Time) bool {
	return p.ROIExemptUntil != nil && !at.After(*p.ROIExemptUntil)
}

// Milestone is a weighted deliverable tracked against a project.
type Milestone struct {
	Base
	ProjectID   string     `json:"project_id"`
	Name        string     `json:"name"`
	Weight      float64    `json:"weight"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// LifecycleGate is a named checkpoint requiring approval before a project may
// cross a stage boundary.
type LifecycleGate struct {
	Base
	ProjectID string       `json:"project_id"`
	Name      string       `json:"name"`
	FromStage ProjectStage `json:"from_stage"`
	ToStage   ProjectStage `json:"to_stage"`
	Status    GateStatus   `json:"status"`
	Approver  string       `json:"approver,omitempty"`
	DecidedAt *time.Time   `json:"decided_at,omitempty"`
	Notes     *string      `json:"notes,omitempty"`
}

// Boundary returns the canonical "from->to" label for the gate.
func (g LifecycleGate) Boundary() string {
	return string(g.FromStage) + "->" + string(g.ToStage)
}

// ComparisonOp selects how a criterion threshold is compared.
type ComparisonOp string

// Criterion comparison operators.
const (
	CompareGTE ComparisonOp = "gte"
	CompareLTE ComparisonOp = "lte"
	CompareGT  ComparisonOp = "gt"
	CompareLT  ComparisonOp = "lt"
)

// Holds reports whether value satisfies the comparison against threshold.
func (op ComparisonOp) Holds(value, threshold float64) bool {
	switch op {
	case CompareGTE:
		return value >= threshold
	case CompareLTE:
		return value <= threshold
	case CompareGT:
		return value > threshold
	case CompareLT:
		return value < threshold
	default:
		return false
	}
}

// Metric keys published in performance snapshot maps and referenced by
// decision criteria and anomaly watches.
const (
	MetricBudgetUtilization   = "budget_utilization"
	MetricMilestoneCompletion = "milestone_completion"
	MetricScheduleSlipDays    = "schedule_slip_days"
	MetricEngagementScore     = "engagement_score"
	MetricROIRatio            = "roi_ratio"
	MetricAnomalyCount        = "anomaly_count"
)

// DecisionCriterion is a single weighted threshold check within a rule.
type DecisionCriterion struct {
	Metric     string       `json:"metric" yaml:"metric"`
	Comparison ComparisonOp `json:"comparison" yaml:"comparison"`
	Threshold  float64      `json:"threshold" yaml:"threshold"`
	Weight     float64      `json:"weight" yaml:"weight"`
	// ROIBased criteria are skipped while the project's ROI exemption is in force.
	ROIBased bool `json:"roi_based,omitempty" yaml:"roi_based,omitempty"`
}

// DecisionRule defines the static weighted-criteria table entry for one
// decision type.
type DecisionRule struct {
	Decision      DecisionType        `json:"decision" yaml:"decision"`
	Stages        []ProjectStage      `json:"stages,omitempty" yaml:"stages,omitempty"`
	Criteria      []DecisionCriterion `json:"criteria" yaml:"criteria"`
	MinConfidence float64             `json:"min_confidence" yaml:"min_confidence"`
	BaseUrgency   float64             `json:"base_urgency" yaml:"base_urgency"`
	BaseImpact    float64             `json:"base_impact" yaml:"base_impact"`
}

// AppliesTo reports whether the rule is scoped to the given stage. Rules with
// no stage list apply to every stage.
func (r DecisionRule) AppliesTo(stage ProjectStage) bool {
	if len(r.Stages) == 0 {
		return true
	}
	for _, s := range r.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// DecisionRecommendation is a scored rule-evaluation output. One record is
// persisted per triggered event.
type DecisionRecommendation struct {
	Base
	ProjectID  string       `json:"project_id"`
	Decision   DecisionType `json:"decision"`
	Score      float64      `json:"score"`
	Confidence float64      `json:"confidence"`
	Urgency    float64      `json:"urgency"`
	Impact     float64      `json:"impact"`
	Triggered  []string     `json:"triggered"`
	Rationale  []string     `json:"rationale"`
	Applied    bool         `json:"applied"`
}

// PerformanceSnapshot captures point-in-time aggregated metrics for a project.
type PerformanceSnapshot struct {
	ProjectID           string    `json:"project_id"`
	TakenAt             time.Time `json:"taken_at"`
	BudgetUtilization   float64   `json:"budget_utilization"`
	MilestoneCompletion float64   `json:"milestone_completion"`
	ScheduleSlipDays    float64   `json:"schedule_slip_days"`
	EngagementScore     float64   `json:"engagement_score"`
	ROIRatio            float64   `json:"roi_ratio"`
	AnomalyCount        int       `json:"anomaly_count"`
	Anomalies           []string  `json:"anomalies,omitempty"`
}

// MetricMap exposes the snapshot as the flat metric map consumed by decision
// criteria and anomaly watch expressions.
func (s PerformanceSnapshot) MetricMap() map[string]float64 {
	return map[string]float64{
		MetricBudgetUtilization:   s.BudgetUtilization,
		MetricMilestoneCompletion: s.MilestoneCompletion,
		MetricScheduleSlipDays:    s.ScheduleSlipDays,
		MetricEngagementScore:     s.EngagementScore,
		MetricROIRatio:            s.ROIRatio,
		MetricAnomalyCount:        float64(s.AnomalyCount),
	}
}

// ValidationCheck records one pass/fail check from adapter validation.
type ValidationCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ValidationReport aggregates the checks run against a merged adapter.
type ValidationReport struct {
	Checks      []ValidationCheck `json:"checks"`
	Passed      bool              `json:"passed"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// AdapterRelease tracks a LoRA adapter through merge, validation and deploy.
type AdapterRelease struct {
	Base
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	BaseModel   string            `json:"base_model"`
	Status      ReleaseStatus     `json:"status"`
	ArtifactKey string            `json:"artifact_key,omitempty"`
	ReportKey   string            `json:"report_key,omitempty"`
	Report      *ValidationReport `json:"report,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// CapabilityExperiment is an A/B experiment between adapter versions on one
// model capability.
type CapabilityExperiment struct {
	Base
	Capability string           `json:"capability"`
	VariantA   string           `json:"variant_a"`
	VariantB   string           `json:"variant_b"`
	TrialsA    int              `json:"trials_a"`
	TrialsB    int              `json:"trials_b"`
	SuccessA   int              `json:"success_a"`
	SuccessB   int              `json:"success_b"`
	Status     ExperimentStatus `json:"status"`
	Winner     string           `json:"winner,omitempty"`
	ZScore     float64          `json:"z_score,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity != SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
