// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"innozone/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// InnovationProject aliases domain.InnovationProject for in-memory persistence operations.
	InnovationProject = domain.InnovationProject
	// Milestone aliases domain.Milestone.
	Milestone = domain.Milestone
	// LifecycleGate aliases domain.LifecycleGate.
	LifecycleGate = domain.LifecycleGate
	// DecisionRecommendation aliases domain.DecisionRecommendation.
	DecisionRecommendation = domain.DecisionRecommendation
	// AdapterRelease aliases domain.AdapterRelease.
	AdapterRelease = domain.AdapterRelease
	// CapabilityExperiment aliases domain.CapabilityExperiment.
	CapabilityExperiment = domain.CapabilityExperiment
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	projects        map[string]InnovationProject
	milestones      map[string]Milestone
	gates           map[string]LifecycleGate
	recommendations map[string]DecisionRecommendation
	releases        map[string]AdapterRelease
	experiments     map[string]CapabilityExperiment
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Projects        map[string]InnovationProject      `json:"projects"`
	Milestones      map[string]Milestone              `json:"milestones"`
	Gates           map[string]LifecycleGate          `json:"gates"`
	Recommendations map[string]DecisionRecommendation `json:"recommendations"`
	Releases        map[string]AdapterRelease         `json:"releases"`
	Experiments     map[string]CapabilityExperiment   `json:"experiments"`
}

func newMemoryState() memoryState {
	return memoryState{
		projects:        make(map[string]InnovationProject),
		milestones:      make(map[string]Milestone),
		gates:           make(map[string]LifecycleGate),
		recommendations: make(map[string]DecisionRecommendation),
		releases:        make(map[string]AdapterRelease),
		experiments:     make(map[string]CapabilityExperiment),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.projects {
		cloned.projects[k] = cloneProject(v)
	}
	for k, v := range s.milestones {
		cloned.milestones[k] = v
	}
	for k, v := range s.gates {
		cloned.gates[k] = v
	}
	for k, v := range s.recommendations {
		cloned.recommendations[k] = cloneRecommendation(v)
	}
	for k, v := range s.releases {
		cloned.releases[k] = cloneRelease(v)
	}
	for k, v := range s.experiments {
		cloned.experiments[k] = v
	}
	return cloned
}

func cloneProject(p InnovationProject) InnovationProject {
	cp := p
	cp.MilestoneIDs = append([]string(nil), p.MilestoneIDs...)
	cp.GateIDs = append([]string(nil), p.GateIDs...)
	return cp
}

func cloneRecommendation(r DecisionRecommendation) DecisionRecommendation {
	cp := r
	cp.Triggered = append([]string(nil), r.Triggered...)
	cp.Rationale = append([]string(nil), r.Rationale...)
	return cp
}

func cloneRelease(r AdapterRelease) AdapterRelease {
	cp := r
	if r.Report != nil {
		report := *r.Report
		report.Checks = append([]domain.ValidationCheck(nil), r.Report.Checks...)
		cp.Report = &report
	}
	return cp
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func newID() string {
	return uuid.NewString()
}

// memTx implements domain.Transaction over a cloned state.
type memTx struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type view struct {
	state *memoryState
}

func newView(state *memoryState) view {
	return view{state: state}
}

// ListProjects returns all projects within the snapshot.
func (v view) ListProjects() []InnovationProject {
	out := make([]InnovationProject, 0, len(v.state.projects))
	for _, p := range v.state.projects {
		out = append(out, cloneProject(p))
	}
	return out
}

// ListMilestones returns all milestones within the snapshot.
func (v view) ListMilestones() []Milestone {
	out := make([]Milestone, 0, len(v.state.milestones))
	for _, m := range v.state.milestones {
		out = append(out, m)
	}
	return out
}

// ListGates returns all lifecycle gates within the snapshot.
func (v view) ListGates() []LifecycleGate {
	out := make([]LifecycleGate, 0, len(v.state.gates))
	for _, g := range v.state.gates {
		out = append(out, g)
	}
	return out
}

// FindProject retrieves a project by ID from the snapshot.
func (v view) FindProject(id string) (InnovationProject, bool) {
	p, ok := v.state.projects[id]
	if !ok {
		return InnovationProject{}, false
	}
	return cloneProject(p), true
}

// FindMilestone retrieves a milestone by ID from the snapshot.
func (v view) FindMilestone(id string) (Milestone, bool) {
	m, ok := v.state.milestones[id]
	return m, ok
}

// FindGate retrieves a gate by ID from the snapshot.
func (v view) FindGate(id string) (LifecycleGate, bool) {
	g, ok := v.state.gates[id]
	return g, ok
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Registered rules are evaluated against the resulting change set before the
// commit is made visible; blocking violations abort the commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, newView(&tx.state), tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newView(&snapshot))
}

// ImportState replaces the committed state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for k, v := range snapshot.Projects {
		state.projects[k] = cloneProject(v)
	}
	for k, v := range snapshot.Milestones {
		state.milestones[k] = v
	}
	for k, v := range snapshot.Gates {
		state.gates[k] = v
	}
	for k, v := range snapshot.Recommendations {
		state.recommendations[k] = cloneRecommendation(v)
	}
	for k, v := range snapshot.Releases {
		state.releases[k] = cloneRelease(v)
	}
	for k, v := range snapshot.Experiments {
		state.experiments[k] = v
	}
	s.state = state
}

// ExportState returns a deep copy of the committed state for snapshotting.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := Snapshot{
		Projects:        make(map[string]InnovationProject, len(s.state.projects)),
		Milestones:      make(map[string]Milestone, len(s.state.milestones)),
		Gates:           make(map[string]LifecycleGate, len(s.state.gates)),
		Recommendations: make(map[string]DecisionRecommendation, len(s.state.recommendations)),
		Releases:        make(map[string]AdapterRelease, len(s.state.releases)),
		Experiments:     make(map[string]CapabilityExperiment, len(s.state.experiments)),
	}
	for k, v := range s.state.projects {
		snapshot.Projects[k] = cloneProject(v)
	}
	for k, v := range s.state.milestones {
		snapshot.Milestones[k] = v
	}
	for k, v := range s.state.gates {
		snapshot.Gates[k] = v
	}
	for k, v := range s.state.recommendations {
		snapshot.Recommendations[k] = cloneRecommendation(v)
	}
	for k, v := range s.state.releases {
		snapshot.Releases[k] = cloneRelease(v)
	}
	for k, v := range s.state.experiments {
		snapshot.Experiments[k] = v
	}
	return snapshot
}

func (tx *memTx) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot exposes the transactional state to callers needing reads mid-transaction.
func (tx *memTx) Snapshot() TransactionView {
	return newView(&tx.state)
}

// CreateProject stores a new project within the transaction.
func (tx *memTx) CreateProject(p InnovationProject) (InnovationProject, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if _, exists := tx.state.projects[p.ID]; exists {
		return InnovationProject{}, fmt.Errorf("project %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.projects[p.ID] = cloneProject(p)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionCreate, After: cloneProject(p)})
	return cloneProject(p), nil
}

// UpdateProject mutates a project using the provided mutator function.
func (tx *memTx) UpdateProject(id string, mutator func(*InnovationProject) error) (InnovationProject, error) {
	current, ok := tx.state.projects[id]
	if !ok {
		return InnovationProject{}, fmt.Errorf("project %q not found", id)
	}
	before := cloneProject(current)
	if err := mutator(&current); err != nil {
		return InnovationProject{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.projects[id] = cloneProject(current)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Before: before, After: cloneProject(current)})
	return cloneProject(current), nil
}

// DeleteProject removes a project from the transaction state.
func (tx *memTx) DeleteProject(id string) error {
	current, ok := tx.state.projects[id]
	if !ok {
		return fmt.Errorf("project %q not found", id)
	}
	delete(tx.state.projects, id)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionDelete, Before: cloneProject(current)})
	return nil
}

// CreateMilestone stores a new milestone.
func (tx *memTx) CreateMilestone(m Milestone) (Milestone, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	if _, exists := tx.state.milestones[m.ID]; exists {
		return Milestone{}, fmt.Errorf("milestone %q already exists", m.ID)
	}
	if m.Weight <= 0 {
		return Milestone{}, fmt.Errorf("milestone weight must be positive")
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.milestones[m.ID] = m
	tx.recordChange(Change{Entity: domain.EntityMilestone, Action: domain.ActionCreate, After: m})
	return m, nil
}

// UpdateMilestone mutates an existing milestone.
func (tx *memTx) UpdateMilestone(id string, mutator func(*Milestone) error) (Milestone, error) {
	current, ok := tx.state.milestones[id]
	if !ok {
		return Milestone{}, fmt.Errorf("milestone %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Milestone{}, err
	}
	if current.Weight <= 0 {
		return Milestone{}, fmt.Errorf("milestone weight must be positive")
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.milestones[id] = current
	tx.recordChange(Change{Entity: domain.EntityMilestone, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteMilestone removes a milestone from state.
func (tx *memTx) DeleteMilestone(id string) error {
	current, ok := tx.state.milestones[id]
	if !ok {
		return fmt.Errorf("milestone %q not found", id)
	}
	delete(tx.state.milestones, id)
	tx.recordChange(Change{Entity: domain.EntityMilestone, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateGate stores a new lifecycle gate.
func (tx *memTx) CreateGate(g LifecycleGate) (LifecycleGate, error) {
	if g.ID == "" {
		g.ID = newID()
	}
	if _, exists := tx.state.gates[g.ID]; exists {
		return LifecycleGate{}, fmt.Errorf("gate %q already exists", g.ID)
	}
	if g.Status == "" {
		g.Status = domain.GatePending
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.gates[g.ID] = g
	tx.recordChange(Change{Entity: domain.EntityGate, Action: domain.ActionCreate, After: g})
	return g, nil
}

// UpdateGate mutates an existing gate.
func (tx *memTx) UpdateGate(id string, mutator func(*LifecycleGate) error) (LifecycleGate, error) {
	current, ok := tx.state.gates[id]
	if !ok {
		return LifecycleGate{}, fmt.Errorf("gate %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return LifecycleGate{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.gates[id] = current
	tx.recordChange(Change{Entity: domain.EntityGate, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteGate removes a gate from state.
func (tx *memTx) DeleteGate(id string) error {
	current, ok := tx.state.gates[id]
	if !ok {
		return fmt.Errorf("gate %q not found", id)
	}
	delete(tx.state.gates, id)
	tx.recordChange(Change{Entity: domain.EntityGate, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateRecommendation persists a decision recommendation record.
func (tx *memTx) CreateRecommendation(r DecisionRecommendation) (DecisionRecommendation, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if _, exists := tx.state.recommendations[r.ID]; exists {
		return DecisionRecommendation{}, fmt.Errorf("recommendation %q already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.recommendations[r.ID] = cloneRecommendation(r)
	tx.recordChange(Change{Entity: domain.EntityRecommendation, Action: domain.ActionCreate, After: cloneRecommendation(r)})
	return cloneRecommendation(r), nil
}

// UpdateRecommendation mutates a recommendation (e.g. marking it applied).
func (tx *memTx) UpdateRecommendation(id string, mutator func(*DecisionRecommendation) error) (DecisionRecommendation, error) {
	current, ok := tx.state.recommendations[id]
	if !ok {
		return DecisionRecommendation{}, fmt.Errorf("recommendation %q not found", id)
	}
	before := cloneRecommendation(current)
	if err := mutator(&current); err != nil {
		return DecisionRecommendation{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.recommendations[id] = cloneRecommendation(current)
	tx.recordChange(Change{Entity: domain.EntityRecommendation, Action: domain.ActionUpdate, Before: before, After: cloneRecommendation(current)})
	return cloneRecommendation(current), nil
}

// CreateRelease stores an adapter release record.
func (tx *memTx) CreateRelease(r AdapterRelease) (AdapterRelease, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if _, exists := tx.state.releases[r.ID]; exists {
		return AdapterRelease{}, fmt.Errorf("release %q already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.releases[r.ID] = cloneRelease(r)
	tx.recordChange(Change{Entity: domain.EntityRelease, Action: domain.ActionCreate, After: cloneRelease(r)})
	return cloneRelease(r), nil
}

// UpdateRelease mutates an adapter release.
func (tx *memTx) UpdateRelease(id string, mutator func(*AdapterRelease) error) (AdapterRelease, error) {
	current, ok := tx.state.releases[id]
	if !ok {
		return AdapterRelease{}, fmt.Errorf("release %q not found", id)
	}
	before := cloneRelease(current)
	if err := mutator(&current); err != nil {
		return AdapterRelease{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.releases[id] = cloneRelease(current)
	tx.recordChange(Change{Entity: domain.EntityRelease, Action: domain.ActionUpdate, Before: before, After: cloneRelease(current)})
	return cloneRelease(current), nil
}

// CreateExperiment stores a capability experiment record.
func (tx *memTx) CreateExperiment(e CapabilityExperiment) (CapabilityExperiment, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if _, exists := tx.state.experiments[e.ID]; exists {
		return CapabilityExperiment{}, fmt.Errorf("experiment %q already exists", e.ID)
	}
	if e.Status == "" {
		e.Status = domain.ExperimentRunning
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.experiments[e.ID] = e
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionCreate, After: e})
	return e, nil
}

// UpdateExperiment mutates a capability experiment.
func (tx *memTx) UpdateExperiment(id string, mutator func(*CapabilityExperiment) error) (CapabilityExperiment, error) {
	current, ok := tx.state.experiments[id]
	if !ok {
		return CapabilityExperiment{}, fmt.Errorf("experiment %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return CapabilityExperiment{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.experiments[id] = current
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// FindProject retrieves a project by ID from the transactional state.
func (tx *memTx) FindProject(id string) (InnovationProject, bool) {
	p, ok := tx.state.projects[id]
	if !ok {
		return InnovationProject{}, false
	}
	return cloneProject(p), true
}

// FindGate retrieves a gate by ID from the transactional state.
func (tx *memTx) FindGate(id string) (LifecycleGate, bool) {
	g, ok := tx.state.gates[id]
	return g, ok
}

// Read helpers ---------------------------------------------------------------

// GetProject retrieves a project by ID from committed state.
func (s *Store) GetProject(id string) (InnovationProject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.projects[id]
	if !ok {
		return InnovationProject{}, false
	}
	return cloneProject(p), true
}

// ListProjects returns all projects from committed state.
func (s *Store) ListProjects() []InnovationProject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InnovationProject, 0, len(s.state.projects))
	for _, p := range s.state.projects {
		out = append(out, cloneProject(p))
	}
	return out
}

// GetMilestone retrieves a milestone by ID.
func (s *Store) GetMilestone(id string) (Milestone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.state.milestones[id]
	return m, ok
}

// ListMilestones returns all milestones.
func (s *Store) ListMilestones() []Milestone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Milestone, 0, len(s.state.milestones))
	for _, m := range s.state.milestones {
		out = append(out, m)
	}
	return out
}

// GetGate retrieves a gate by ID.
func (s *Store) GetGate(id string) (LifecycleGate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.state.gates[id]
	return g, ok
}

// ListGates returns all lifecycle gates.
func (s *Store) ListGates() []LifecycleGate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LifecycleGate, 0, len(s.state.gates))
	for _, g := range s.state.gates {
		out = append(out, g)
	}
	return out
}

// ListRecommendations returns all persisted decision recommendations.
func (s *Store) ListRecommendations() []DecisionRecommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DecisionRecommendation, 0, len(s.state.recommendations))
	for _, r := range s.state.recommendations {
		out = append(out, cloneRecommendation(r))
	}
	return out
}

// GetRelease retrieves an adapter release by ID.
func (s *Store) GetRelease(id string) (AdapterRelease, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.releases[id]
	if !ok {
		return AdapterRelease{}, false
	}
	return cloneRelease(r), true
}

// ListReleases returns all adapter releases.
func (s *Store) ListReleases() []AdapterRelease {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AdapterRelease, 0, len(s.state.releases))
	for _, r := range s.state.releases {
		out = append(out, cloneRelease(r))
	}
	return out
}

// GetExperiment retrieves a capability experiment by ID.
func (s *Store) GetExperiment(id string) (CapabilityExperiment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.experiments[id]
	return e, ok
}

// ListExperiments returns all capability experiments.
func (s *Store) ListExperiments() []CapabilityExperiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CapabilityExperiment, 0, len(s.state.experiments))
	for _, e := range s.state.experiments {
		out = append(out, e)
	}
	return out
}
