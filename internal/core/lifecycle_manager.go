package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"innozone/pkg/domain"
)

// autoHaltUrgency is the urgency at or above which a halt recommendation is
// applied without human review.
const autoHaltUrgency = 0.75

// AuditEntry records one lifecycle action for later review.
type AuditEntry struct {
	At        time.Time    `json:"at"`
	Action    string       `json:"action"`
	Actor     string       `json:"actor,omitempty"`
	ProjectID string       `json:"project_id"`
	From      ProjectStage `json:"from,omitempty"`
	To        ProjectStage `json:"to,omitempty"`
	GateID    string       `json:"gate_id,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}

// AuditLog receives lifecycle audit entries.
type AuditLog interface {
	Append(entry AuditEntry)
}

// MemoryAuditLog retains audit entries in memory.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewMemoryAuditLog constructs an empty in-memory audit log.
func NewMemoryAuditLog() *MemoryAuditLog { return &MemoryAuditLog{} }

// Append stores the entry.
func (l *MemoryAuditLog) Append(entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuditEntry(nil), l.entries...)
}

// LifecycleManager drives the gated stage machine for admitted projects and
// applies automated recommendations during Tick passes.
type LifecycleManager struct {
	store     PersistentStore
	decisions *DecisionEngine
	monitor   *PerformanceMonitor
	metrics   *Metrics
	audit     AuditLog
	logger    *zap.Logger
	nowFn     func() time.Time
}

// NewLifecycleManager wires the manager. Logger defaults to a no-op, audit to
// an in-memory log; metrics may be nil.
func NewLifecycleManager(store PersistentStore, decisions *DecisionEngine, monitor *PerformanceMonitor, metrics *Metrics, audit AuditLog, logger *zap.Logger) *LifecycleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = NewMemoryAuditLog()
	}
	return &LifecycleManager{
		store:     store,
		decisions: decisions,
		monitor:   monitor,
		metrics:   metrics,
		audit:     audit,
		logger:    logger,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// Admit brings a project into the zone at the concept stage and opens the
// first lifecycle gate.
func (m *LifecycleManager) Admit(ctx context.Context, project InnovationProject) (InnovationProject, Result, error) {
	if strings.TrimSpace(project.Code) == "" {
		return InnovationProject{}, Result{}, fmt.Errorf("project code required")
	}
	if strings.TrimSpace(project.Title) == "" {
		return InnovationProject{}, Result{}, fmt.Errorf("project title required")
	}
	project.Stage = StageConcept
	project.PriorStage = nil
	project.IsActive = true

	var admitted InnovationProject
	res, err := m.store.RunInTransaction(ctx, func(tx Transaction) error {
		created, err := tx.CreateProject(project)
		if err != nil {
			return err
		}
		gate, err := tx.CreateGate(LifecycleGate{
			ProjectID: created.ID,
			Name:      string(StageConcept) + "->" + string(StageFeasibility),
			FromStage: StageConcept,
			ToStage:   StageFeasibility,
		})
		if err != nil {
			return err
		}
		admitted, err = tx.UpdateProject(created.ID, func(p *InnovationProject) error {
			p.GateIDs = append(p.GateIDs, gate.ID)
			return nil
		})
		return err
	})
	if err != nil {
		return InnovationProject{}, res, err
	}
	m.audit.Append(AuditEntry{At: m.nowFn(), Action: "admit", ProjectID: admitted.ID, To: StageConcept})
	m.logger.Info("project admitted",
		zap.String("project", admitted.ID),
		zap.String("code", admitted.Code))
	return admitted, res, nil
}

// ApproveGate marks a pending gate approved.
func (m *LifecycleManager) ApproveGate(ctx context.Context, gateID, approver, notes string) (LifecycleGate, Result, error) {
	return m.decideGate(ctx, gateID, GateApproved, approver, notes)
}

// RejectGate marks a pending gate rejected.
func (m *LifecycleManager) RejectGate(ctx context.Context, gateID, approver, notes string) (LifecycleGate, Result, error) {
	return m.decideGate(ctx, gateID, GateRejected, approver, notes)
}

// WaiveGate marks a pending gate waived; a waived gate permits advancement.
func (m *LifecycleManager) WaiveGate(ctx context.Context, gateID, approver, notes string) (LifecycleGate, Result, error) {
	return m.decideGate(ctx, gateID, GateWaived, approver, notes)
}

func (m *LifecycleManager) decideGate(ctx context.Context, gateID string, status GateStatus, approver, notes string) (LifecycleGate, Result, error) {
	if strings.TrimSpace(approver) == "" {
		return LifecycleGate{}, Result{}, fmt.Errorf("gate decision requires an approver")
	}
	now := m.nowFn()
	var decided LifecycleGate
	res, err := m.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok := tx.FindGate(gateID); !ok {
			return ErrNotFound{Entity: EntityGate, ID: gateID}
		}
		var err error
		decided, err = tx.UpdateGate(gateID, func(g *LifecycleGate) error {
			g.Status = status
			g.Approver = approver
			g.DecidedAt = &now
			if notes != "" {
				g.Notes = &notes
			}
			return nil
		})
		return err
	})
	if err != nil {
		return LifecycleGate{}, res, err
	}
	m.audit.Append(AuditEntry{At: now, Action: "gate_" + string(status), Actor: approver, ProjectID: decided.ProjectID, GateID: gateID, Reason: notes})
	m.logger.Info("gate decided",
		zap.String("gate", gateID),
		zap.String("status", string(status)),
		zap.String("approver", approver))
	return decided, res, nil
}

// Advance moves the project to its next stage. Guard rules enforce gate and
// stage legality; on success the next boundary's gate is opened.
func (m *LifecycleManager) Advance(ctx context.Context, projectID string) (InnovationProject, Result, error) {
	var advanced InnovationProject
	var from, to ProjectStage
	res, err := m.store.RunInTransaction(ctx, func(tx Transaction) error {
		project, ok := tx.FindProject(projectID)
		if !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		next, ok := domain.NextStage(project.Stage)
		if !ok {
			return fmt.Errorf("project %s at stage %s cannot advance", project.Code, project.Stage)
		}
		from, to = project.Stage, next

		var err error
		advanced, err = tx.UpdateProject(projectID, func(p *InnovationProject) error {
			p.Stage = next
			return nil
		})
		if err != nil {
			return err
		}
		following, ok := domain.NextStage(next)
		if !ok {
			return nil
		}
		gate, err := tx.CreateGate(LifecycleGate{
			ProjectID: projectID,
			Name:      string(next) + "->" + string(following),
			FromStage: next,
			ToStage:   following,
		})
		if err != nil {
			return err
		}
		advanced, err = tx.UpdateProject(projectID, func(p *InnovationProject) error {
			p.GateIDs = append(p.GateIDs, gate.ID)
			return nil
		})
		return err
	})
	if err != nil {
		return InnovationProject{}, res, err
	}
	m.audit.Append(AuditEntry{At: m.nowFn(), Action: "advance", ProjectID: projectID, From: from, To: to})
	m.logger.Info("project advanced",
		zap.String("project", projectID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return advanced, res, nil
}

// Halt parks the project, remembering the stage to resume to.
func (m *LifecycleManager) Halt(ctx context.Context, projectID, reason string) (InnovationProject, Result, error) {
	var halted InnovationProject
	var from ProjectStage
	res, err := m.store.RunInTransaction(ctx, func(tx Transaction) error {
		project, ok := tx.FindProject(projectID)
		if !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		if project.Stage == StageHalted {
			return fmt.Errorf("project %s is already halted", project.Code)
		}
		from = project.Stage
		var err error
		halted, err = tx.UpdateProject(projectID, func(p *InnovationProject) error {
			prior := p.Stage
			p.PriorStage = &prior
			p.Stage = StageHalted
			if reason != "" {
				p.HaltedReason = &reason
			}
			return nil
		})
		return err
	})
	if err != nil {
		return InnovationProject{}, res, err
	}
	m.audit.Append(AuditEntry{At: m.nowFn(), Action: "halt", ProjectID: projectID, From: from, To: StageHalted, Reason: reason})
	m.logger.Warn("project halted",
		zap.String("project", projectID),
		zap.String("reason", reason))
	return halted, res, nil
}

// Resume returns a halted project to the stage it held before the halt.
func (m *LifecycleManager) Resume(ctx context.Context, projectID string) (InnovationProject, Result, error) {
	var resumed InnovationProject
	var to ProjectStage
	res, err := m.store.RunInTransaction(ctx, func(tx Transaction) error {
		project, ok := tx.FindProject(projectID)
		if !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		if project.Stage != StageHalted {
			return fmt.Errorf("project %s is not halted", project.Code)
		}
		if project.PriorStage == nil {
			return fmt.Errorf("project %s has no recorded prior stage", project.Code)
		}
		to = *project.PriorStage
		var err error
		resumed, err = tx.UpdateProject(projectID, func(p *InnovationProject) error {
			p.Stage = *p.PriorStage
			p.PriorStage = nil
			p.HaltedReason = nil
			return nil
		})
		return err
	})
	if err != nil {
		return InnovationProject{}, res, err
	}
	m.audit.Append(AuditEntry{At: m.nowFn(), Action: "resume", ProjectID: projectID, From: StageHalted, To: to})
	m.logger.Info("project resumed",
		zap.String("project", projectID),
		zap.String("stage", string(to)))
	return resumed, res, nil
}

// Retire soft-deletes the project. Retired projects reject further mutations.
func (m *LifecycleManager) Retire(ctx context.Context, projectID string) (Result, error) {
	res, err := m.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok := tx.FindProject(projectID); !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		_, err := tx.UpdateProject(projectID, func(p *InnovationProject) error {
			p.IsActive = false
			return nil
		})
		return err
	})
	if err != nil {
		return res, err
	}
	m.audit.Append(AuditEntry{At: m.nowFn(), Action: "retire", ProjectID: projectID})
	m.logger.Info("project retired", zap.String("project", projectID))
	return res, nil
}

// Tick runs one monitoring pass over every governable project: snapshot,
// decision evaluation, and automatic application of advance and high-urgency
// halt recommendations. Everything else is logged for human follow-up.
func (m *LifecycleManager) Tick(ctx context.Context) error {
	if m.monitor == nil || m.decisions == nil {
		return fmt.Errorf("tick requires a monitor and a decision engine")
	}
	for _, project := range m.store.ListProjects() {
		if !project.IsActive || project.Stage == StageHalted || project.Stage == StageMature {
			continue
		}
		snapshot, err := m.monitor.Snapshot(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", project.ID, err)
		}
		history := m.monitor.History(project.ID)
		recs, err := m.decisions.EvaluateProject(ctx, project, snapshot, history)
		if err != nil {
			return fmt.Errorf("evaluate %s: %w", project.ID, err)
		}
		for _, rec := range recs {
			applied, err := m.applyRecommendation(ctx, project, rec)
			if err != nil {
				return err
			}
			if applied {
				// One applied action per project per tick keeps the
				// machine observable between passes.
				break
			}
			m.logger.Info("recommendation pending review",
				zap.String("project", project.ID),
				zap.String("decision", string(rec.Decision)),
				zap.Float64("confidence", rec.Confidence),
				zap.Float64("urgency", rec.Urgency))
		}
	}
	return nil
}

func (m *LifecycleManager) applyRecommendation(ctx context.Context, project InnovationProject, rec DecisionRecommendation) (bool, error) {
	switch rec.Decision {
	case domain.DecisionAdvance:
		next, ok := domain.NextStage(project.Stage)
		if !ok {
			return false, nil
		}
		gate, found := m.approvedBoundaryGate(project.ID, project.Stage, next)
		if !found {
			return false, nil
		}
		if _, _, err := m.Advance(ctx, project.ID); err != nil {
			return false, fmt.Errorf("auto advance %s: %w", project.ID, err)
		}
		m.markApplied(ctx, rec.ID)
		m.metrics.ObserveDecisionApplied(rec.Decision)
		m.logger.Info("recommendation auto-applied",
			zap.String("project", project.ID),
			zap.String("decision", string(rec.Decision)),
			zap.String("gate", gate.ID))
		return true, nil
	case domain.DecisionHalt:
		if rec.Urgency < autoHaltUrgency {
			return false, nil
		}
		reason := "automated halt: " + strings.Join(rec.Rationale, "; ")
		if _, _, err := m.Halt(ctx, project.ID, reason); err != nil {
			return false, fmt.Errorf("auto halt %s: %w", project.ID, err)
		}
		m.markApplied(ctx, rec.ID)
		m.metrics.ObserveDecisionApplied(rec.Decision)
		return true, nil
	default:
		return false, nil
	}
}

func (m *LifecycleManager) markApplied(ctx context.Context, recID string) {
	if recID == "" {
		return
	}
	if _, err := m.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateRecommendation(recID, func(r *DecisionRecommendation) error {
			r.Applied = true
			return nil
		})
		return err
	}); err != nil {
		m.logger.Warn("failed to mark recommendation applied",
			zap.String("recommendation", recID),
			zap.Error(err))
	}
}

func (m *LifecycleManager) approvedBoundaryGate(projectID string, from, to ProjectStage) (LifecycleGate, bool) {
	for _, gate := range m.store.ListGates() {
		if gate.ProjectID != projectID || gate.FromStage != from || gate.ToStage != to {
			continue
		}
		if gate.Status == GateApproved || gate.Status == GateWaived {
			return gate, true
		}
	}
	return LifecycleGate{}, false
}
