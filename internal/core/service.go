package core

import (
	"context"
	"fmt"
	"time"
)

// Service exposes transactional bookkeeping operations for admitted projects.
// Lifecycle transitions live on LifecycleManager; the service covers the
// records the monitor and decision engine feed on.
type Service struct {
	store PersistentStore
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore) *Service {
	return &Service{store: store}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// CreateMilestone persists a milestone and links it to its project.
func (s *Service) CreateMilestone(ctx context.Context, milestone Milestone) (Milestone, Result, error) {
	var created Milestone
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok := tx.FindProject(milestone.ProjectID); !ok {
			return ErrNotFound{Entity: EntityProject, ID: milestone.ProjectID}
		}
		var err error
		created, err = tx.CreateMilestone(milestone)
		if err != nil {
			return err
		}
		_, err = tx.UpdateProject(milestone.ProjectID, func(p *InnovationProject) error {
			p.MilestoneIDs = append(p.MilestoneIDs, created.ID)
			return nil
		})
		return err
	})
	return created, res, err
}

// CompleteMilestone stamps the milestone as completed at the given instant.
func (s *Service) CompleteMilestone(ctx context.Context, milestoneID string, at time.Time) (Milestone, Result, error) {
	var updated Milestone
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateMilestone(milestoneID, func(m *Milestone) error {
			if m.CompletedAt != nil {
				return fmt.Errorf("milestone %s already completed", m.Name)
			}
			m.CompletedAt = &at
			return nil
		})
		return err
	})
	return updated, res, err
}

// RecordSpend adds to the project's spent budget. Guard rules warn near the
// allocation and block once tolerance is exceeded.
func (s *Service) RecordSpend(ctx context.Context, projectID string, amount float64) (InnovationProject, Result, error) {
	if amount <= 0 {
		return InnovationProject{}, Result{}, fmt.Errorf("spend amount must be positive")
	}
	var updated InnovationProject
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok := tx.FindProject(projectID); !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		var err error
		updated, err = tx.UpdateProject(projectID, func(p *InnovationProject) error {
			p.BudgetSpent += amount
			return nil
		})
		return err
	})
	return updated, res, err
}

// RecordROI updates the project's observed ROI.
func (s *Service) RecordROI(ctx context.Context, projectID string, current float64) (InnovationProject, Result, error) {
	var updated InnovationProject
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok := tx.FindProject(projectID); !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		var err error
		updated, err = tx.UpdateProject(projectID, func(p *InnovationProject) error {
			p.ROICurrent = current
			return nil
		})
		return err
	})
	return updated, res, err
}

// ExtendROIExemption pushes the project's ROI grace window to the new instant.
// The window only moves forward.
func (s *Service) ExtendROIExemption(ctx context.Context, projectID string, until time.Time) (InnovationProject, Result, error) {
	var updated InnovationProject
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok := tx.FindProject(projectID); !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		var err error
		updated, err = tx.UpdateProject(projectID, func(p *InnovationProject) error {
			if p.ROIExemptUntil != nil && p.ROIExemptUntil.After(until) {
				return fmt.Errorf("project %s exemption already extends past %s", p.Code, until.Format(time.RFC3339))
			}
			p.ROIExemptUntil = &until
			return nil
		})
		return err
	})
	return updated, res, err
}

// GetProject fetches a project by ID.
func (s *Service) GetProject(id string) (InnovationProject, error) {
	project, ok := s.store.GetProject(id)
	if !ok {
		return InnovationProject{}, ErrNotFound{Entity: EntityProject, ID: id}
	}
	return project, nil
}

// ListActiveProjects returns the projects currently governed by the zone.
func (s *Service) ListActiveProjects() []InnovationProject {
	var out []InnovationProject
	for _, p := range s.store.ListProjects() {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

// PendingGates returns pending gates, optionally filtered to one project.
func (s *Service) PendingGates(projectID string) []LifecycleGate {
	var out []LifecycleGate
	for _, g := range s.store.ListGates() {
		if g.Status != GatePending {
			continue
		}
		if projectID != "" && g.ProjectID != projectID {
			continue
		}
		out = append(out, g)
	}
	return out
}
