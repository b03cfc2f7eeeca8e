package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateProject(InnovationProject) (InnovationProject, error)
	UpdateProject(id string, mutator func(*InnovationProject) error) (InnovationProject, error)
	DeleteProject(id string) error
	CreateMilestone(Milestone) (Milestone, error)
	UpdateMilestone(id string, mutator func(*Milestone) error) (Milestone, error)
	DeleteMilestone(id string) error
	CreateGate(LifecycleGate) (LifecycleGate, error)
	UpdateGate(id string, mutator func(*LifecycleGate) error) (LifecycleGate, error)
	DeleteGate(id string) error
	CreateRecommendation(DecisionRecommendation) (DecisionRecommendation, error)
	UpdateRecommendation(id string, mutator func(*DecisionRecommendation) error) (DecisionRecommendation, error)
	CreateRelease(AdapterRelease) (AdapterRelease, error)
	UpdateRelease(id string, mutator func(*AdapterRelease) error) (AdapterRelease, error)
	CreateExperiment(CapabilityExperiment) (CapabilityExperiment, error)
	UpdateExperiment(id string, mutator func(*CapabilityExperiment) error) (CapabilityExperiment, error)
	FindProject(id string) (InnovationProject, bool)
	FindGate(id string) (LifecycleGate, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView = RuleView

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetProject(id string) (InnovationProject, bool)
	ListProjects() []InnovationProject
	GetMilestone(id string) (Milestone, bool)
	ListMilestones() []Milestone
	GetGate(id string) (LifecycleGate, bool)
	ListGates() []LifecycleGate
	ListRecommendations() []DecisionRecommendation
	GetRelease(id string) (AdapterRelease, bool)
	ListReleases() []AdapterRelease
	GetExperiment(id string) (CapabilityExperiment, bool)
	ListExperiments() []CapabilityExperiment
}
