// Package mlops orchestrates adapter release pipelines: merging LoRA adapter
// weights into a deployable artifact, validating the result, and promoting it
// to deployed while keeping the previous deployment available for rollback.
package mlops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"innozone/internal/blob"
	"innozone/pkg/domain"
)

// MergeRequest describes the adapters to merge for a release.
type MergeRequest struct {
	Name        string
	Version     string
	BaseModel   string
	AdapterURIs []string
	Weights     []float64
}

// Merger produces merged adapter weights. Implementations wrap whatever
// merge backend is in use; the orchestrator only handles the bytes.
type Merger interface {
	Merge(ctx context.Context, req MergeRequest) ([]byte, error)
}

// Validator checks a merged artifact before deployment.
type Validator interface {
	Validate(ctx context.Context, req MergeRequest, artifact []byte) (domain.ValidationReport, error)
}

// VariantPreference reports the experiment-winning version for a capability.
// Adapter names double as capability names, so deploys can be checked
// against concluded experiment outcomes.
type VariantPreference interface {
	PreferredVariant(capability string) (string, bool)
}

// AuditEntry records a release pipeline stage change.
type AuditEntry struct {
	At        time.Time            `json:"at"`
	ReleaseID string               `json:"release_id"`
	Name      string               `json:"name"`
	Version   string               `json:"version"`
	Status    domain.ReleaseStatus `json:"status"`
	Detail    string               `json:"detail,omitempty"`
}

// AuditLogger records pipeline audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MemoryAuditLog captures audit entries in-memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a defensive copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

type releaseTask struct {
	id  string
	req MergeRequest
}

// Worker executes adapter release pipelines asynchronously. Releases are
// persisted through the domain store so status survives restarts; artifacts
// and validation reports go to the blob store under create-only keys.
type Worker struct {
	store     domain.PersistentStore
	artifacts blob.Store
	merger    Merger
	validator Validator
	audit     AuditLogger
	logger    *zap.Logger

	preferences VariantPreference

	queue chan releaseTask

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs a release pipeline worker.
func NewWorker(store domain.PersistentStore, artifacts blob.Store, merger Merger, validator Validator, audit AuditLogger, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = &MemoryAuditLog{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		store:     store,
		artifacts: artifacts,
		merger:    merger,
		validator: validator,
		audit:     audit,
		logger:    logger,
		queue:     make(chan releaseTask, 32),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetPreferences wires a preference source consulted on deploy. Call before
// Start.
func (w *Worker) SetPreferences(p VariantPreference) {
	w.preferences = p
}

// Start begins processing release submissions.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for in-flight work.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// Submit persists a new release in submitted state and enqueues it for the
// pipeline. A full queue returns an error instead of blocking the caller.
func (w *Worker) Submit(ctx context.Context, req MergeRequest) (domain.AdapterRelease, error) {
	if strings.TrimSpace(req.Name) == "" {
		return domain.AdapterRelease{}, fmt.Errorf("release name required")
	}
	if strings.TrimSpace(req.Version) == "" {
		return domain.AdapterRelease{}, fmt.Errorf("release version required")
	}
	if len(req.AdapterURIs) == 0 {
		return domain.AdapterRelease{}, fmt.Errorf("at least one adapter required")
	}
	for _, existing := range w.store.ListReleases() {
		if existing.Name == req.Name && existing.Version == req.Version {
			return domain.AdapterRelease{}, fmt.Errorf("release %s@%s already submitted", req.Name, req.Version)
		}
	}

	var created domain.AdapterRelease
	_, err := w.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateRelease(domain.AdapterRelease{
			Name:      req.Name,
			Version:   req.Version,
			BaseModel: req.BaseModel,
			Status:    domain.ReleaseSubmitted,
		})
		return err
	})
	if err != nil {
		return domain.AdapterRelease{}, err
	}
	w.audit.Record(ctx, AuditEntry{At: time.Now().UTC(), ReleaseID: created.ID, Name: req.Name, Version: req.Version, Status: domain.ReleaseSubmitted})

	select {
	case w.queue <- releaseTask{id: created.ID, req: req}:
	default:
		w.markFailed(created.ID, "release queue full")
		return domain.AdapterRelease{}, fmt.Errorf("release queue full")
	}
	return created, nil
}

// Release returns a snapshot of a persisted release.
func (w *Worker) Release(id string) (domain.AdapterRelease, bool) {
	return w.store.GetRelease(id)
}

func (w *Worker) process(task releaseTask) {
	req := task.req

	w.setStatus(task.id, domain.ReleaseMerging, "")
	merged, err := w.merger.Merge(w.ctx, req)
	if err != nil {
		w.markFailed(task.id, fmt.Sprintf("merge failed: %v", err))
		return
	}

	artifactKey := fmt.Sprintf("adapters/%s/%s", req.Name, req.Version)
	if _, err := w.artifacts.Put(w.ctx, artifactKey, bytes.NewReader(merged), blob.PutOptions{
		ContentType: "application/octet-stream",
		Metadata:    map[string]string{"base_model": req.BaseModel},
	}); err != nil {
		w.markFailed(task.id, fmt.Sprintf("store artifact: %v", err))
		return
	}

	w.setStatus(task.id, domain.ReleaseValidating, "")
	report, err := w.validator.Validate(w.ctx, req, merged)
	if err != nil {
		w.markFailed(task.id, fmt.Sprintf("validation error: %v", err))
		return
	}
	reportKey := artifactKey + ".report.json"
	if err := w.storeReport(reportKey, report); err != nil {
		w.markFailed(task.id, fmt.Sprintf("store report: %v", err))
		return
	}
	if !report.Passed {
		w.reject(task.id, artifactKey, reportKey, report)
		return
	}

	w.setStatus(task.id, domain.ReleaseDeploying, "")
	if err := w.deploy(task.id, req, artifactKey, reportKey, report); err != nil {
		w.markFailed(task.id, fmt.Sprintf("deploy failed: %v", err))
		return
	}
	w.logger.Info("adapter release deployed",
		zap.String("release_id", task.id),
		zap.String("name", req.Name),
		zap.String("version", req.Version))
}

// deploy marks the release deployed and demotes the previously deployed
// release of the same adapter to superseded, both in one transaction.
func (w *Worker) deploy(id string, req MergeRequest, artifactKey, reportKey string, report domain.ValidationReport) error {
	var supersede []string
	for _, existing := range w.store.ListReleases() {
		if existing.Name == req.Name && existing.ID != id && existing.Status == domain.ReleaseDeployed {
			supersede = append(supersede, existing.ID)
		}
	}
	_, err := w.store.RunInTransaction(w.ctx, func(tx domain.Transaction) error {
		for _, existingID := range supersede {
			if _, err := tx.UpdateRelease(existingID, func(r *domain.AdapterRelease) error {
				r.Status = domain.ReleaseSuperseded
				return nil
			}); err != nil {
				return err
			}
		}
		_, err := tx.UpdateRelease(id, func(r *domain.AdapterRelease) error {
			r.Status = domain.ReleaseDeployed
			r.ArtifactKey = artifactKey
			r.ReportKey = reportKey
			r.Report = &report
			r.Error = ""
			return nil
		})
		return err
	})
	if err != nil {
		return err
	}
	detail := ""
	if w.preferences != nil {
		if preferred, ok := w.preferences.PreferredVariant(req.Name); ok && preferred != req.Version {
			detail = fmt.Sprintf("experiment winner is %s", preferred)
			w.logger.Warn("deployed version differs from experiment winner",
				zap.String("name", req.Name),
				zap.String("version", req.Version),
				zap.String("preferred", preferred))
		}
	}
	w.recordAudit(id, domain.ReleaseDeployed, detail)
	return nil
}

// Rollback restores the most recently superseded release of an adapter as
// deployed and demotes the currently deployed one.
func (w *Worker) Rollback(ctx context.Context, name string) (domain.AdapterRelease, error) {
	var current, previous *domain.AdapterRelease
	for _, r := range w.store.ListReleases() {
		if r.Name != name {
			continue
		}
		r := r
		switch r.Status {
		case domain.ReleaseDeployed:
			current = &r
		case domain.ReleaseSuperseded:
			if previous == nil || r.UpdatedAt.After(previous.UpdatedAt) {
				previous = &r
			}
		}
	}
	if previous == nil {
		return domain.AdapterRelease{}, fmt.Errorf("no superseded release to roll back to for %s", name)
	}

	var restored domain.AdapterRelease
	_, err := w.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if current != nil {
			if _, err := tx.UpdateRelease(current.ID, func(r *domain.AdapterRelease) error {
				r.Status = domain.ReleaseSuperseded
				return nil
			}); err != nil {
				return err
			}
		}
		var err error
		restored, err = tx.UpdateRelease(previous.ID, func(r *domain.AdapterRelease) error {
			r.Status = domain.ReleaseDeployed
			return nil
		})
		return err
	})
	if err != nil {
		return domain.AdapterRelease{}, err
	}
	if current != nil {
		w.recordAudit(current.ID, domain.ReleaseSuperseded, "rolled back")
	}
	w.recordAudit(restored.ID, domain.ReleaseDeployed, "rollback")
	w.logger.Warn("adapter release rolled back",
		zap.String("name", name),
		zap.String("restored_version", restored.Version))
	return restored, nil
}

func (w *Worker) storeReport(key string, report domain.ValidationReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = w.artifacts.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "application/json"})
	return err
}

func (w *Worker) reject(id, artifactKey, reportKey string, report domain.ValidationReport) {
	failed := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		if !check.Passed {
			failed = append(failed, check.Name)
		}
	}
	detail := "validation failed: " + strings.Join(failed, ", ")
	_, err := w.store.RunInTransaction(w.ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRelease(id, func(r *domain.AdapterRelease) error {
			r.Status = domain.ReleaseRejected
			r.ArtifactKey = artifactKey
			r.ReportKey = reportKey
			r.Report = &report
			r.Error = detail
			return nil
		})
		return err
	})
	if err != nil {
		w.logger.Error("record rejection", zap.String("release_id", id), zap.Error(err))
		return
	}
	w.recordAudit(id, domain.ReleaseRejected, detail)
}

func (w *Worker) setStatus(id string, status domain.ReleaseStatus, detail string) {
	_, err := w.store.RunInTransaction(w.ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRelease(id, func(r *domain.AdapterRelease) error {
			r.Status = status
			r.Error = detail
			return nil
		})
		return err
	})
	if err != nil {
		w.logger.Error("update release status", zap.String("release_id", id), zap.Error(err))
		return
	}
	w.recordAudit(id, status, detail)
}

func (w *Worker) markFailed(id, reason string) {
	_, err := w.store.RunInTransaction(w.ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRelease(id, func(r *domain.AdapterRelease) error {
			r.Status = domain.ReleaseFailed
			r.Error = reason
			return nil
		})
		return err
	})
	if err != nil {
		w.logger.Error("record failure", zap.String("release_id", id), zap.Error(err))
		return
	}
	w.recordAudit(id, domain.ReleaseFailed, reason)
	w.logger.Warn("adapter release failed", zap.String("release_id", id), zap.String("reason", reason))
}

func (w *Worker) recordAudit(id string, status domain.ReleaseStatus, detail string) {
	release, ok := w.store.GetRelease(id)
	if !ok {
		return
	}
	w.audit.Record(w.ctx, AuditEntry{
		At:        time.Now().UTC(),
		ReleaseID: id,
		Name:      release.Name,
		Version:   release.Version,
		Status:    status,
		Detail:    detail,
	})
}
