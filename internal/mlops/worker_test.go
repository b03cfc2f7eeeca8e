package mlops

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"innozone/internal/blob"
	"innozone/internal/infra/persistence/memory"
	"innozone/pkg/domain"
)

type stubMerger struct {
	payload []byte
	err     error
}

func (m stubMerger) Merge(_ context.Context, _ MergeRequest) ([]byte, error) {
	return m.payload, m.err
}

type stubValidator struct {
	report domain.ValidationReport
	err    error
}

func (v stubValidator) Validate(_ context.Context, _ MergeRequest, _ []byte) (domain.ValidationReport, error) {
	return v.report, v.err
}

func passingReport() domain.ValidationReport {
	return domain.ValidationReport{
		Checks: []domain.ValidationCheck{
			{Name: "capability_regression", Passed: true},
			{Name: "size_budget", Passed: true},
			{Name: "base_model_compatibility", Passed: true},
		},
		Passed:      true,
		GeneratedAt: time.Now().UTC(),
	}
}

func failingReport() domain.ValidationReport {
	return domain.ValidationReport{
		Checks: []domain.ValidationCheck{
			{Name: "capability_regression", Passed: false, Detail: "sentiment accuracy dropped 4%"},
			{Name: "size_budget", Passed: true},
		},
		Passed:      false,
		GeneratedAt: time.Now().UTC(),
	}
}

func newWorkerFixture(t *testing.T, merger Merger, validator Validator) (*Worker, domain.PersistentStore, blob.Store, *MemoryAuditLog) {
	t.Helper()
	store := memory.NewStore(nil)
	artifacts := blob.NewMemory()
	audit := &MemoryAuditLog{}
	w := NewWorker(store, artifacts, merger, validator, audit, nil)
	w.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})
	return w, store, artifacts, audit
}

func waitForStatus(t *testing.T, w *Worker, id string, want ...domain.ReleaseStatus) domain.AdapterRelease {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		release, ok := w.Release(id)
		if ok {
			for _, s := range want {
				if release.Status == s {
					return release
				}
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	release, _ := w.Release(id)
	t.Fatalf("release %s stuck in status %s, wanted one of %v", id, release.Status, want)
	return domain.AdapterRelease{}
}

func submitRelease(t *testing.T, w *Worker, version string) domain.AdapterRelease {
	t.Helper()
	release, err := w.Submit(context.Background(), MergeRequest{
		Name:        "sentiment",
		Version:     version,
		BaseModel:   "llm-7b",
		AdapterURIs: []string{"s3://adapters/sentiment-a", "s3://adapters/sentiment-b"},
		Weights:     []float64{0.6, 0.4},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return release
}

func TestPipelineDeploysValidatedRelease(t *testing.T) {
	w, _, artifacts, audit := newWorkerFixture(t,
		stubMerger{payload: []byte("merged-weights")},
		stubValidator{report: passingReport()})

	release := submitRelease(t, w, "1.0.0")
	if release.Status != domain.ReleaseSubmitted {
		t.Fatalf("initial status = %s", release.Status)
	}

	deployed := waitForStatus(t, w, release.ID, domain.ReleaseDeployed)
	if deployed.ArtifactKey != "adapters/sentiment/1.0.0" {
		t.Fatalf("artifact key = %q", deployed.ArtifactKey)
	}
	if deployed.Report == nil || !deployed.Report.Passed {
		t.Fatalf("expected passing report on release")
	}

	info, rc, err := artifacts.Get(context.Background(), deployed.ArtifactKey)
	if err != nil {
		t.Fatalf("fetch artifact: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "merged-weights" {
		t.Fatalf("artifact payload = %q", data)
	}
	if info.Metadata["base_model"] != "llm-7b" {
		t.Fatalf("artifact metadata = %v", info.Metadata)
	}
	if _, err := artifacts.Head(context.Background(), deployed.ReportKey); err != nil {
		t.Fatalf("report not stored: %v", err)
	}

	want := []domain.ReleaseStatus{domain.ReleaseSubmitted, domain.ReleaseMerging, domain.ReleaseValidating, domain.ReleaseDeploying, domain.ReleaseDeployed}
	var statuses []domain.ReleaseStatus
	deadline := time.Now().Add(time.Second)
	for {
		statuses = statuses[:0]
		for _, e := range audit.Entries() {
			statuses = append(statuses, e.Status)
		}
		if len(statuses) >= len(want) || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(statuses) != len(want) {
		t.Fatalf("audit statuses = %v, want %v", statuses, want)
	}
	for i, s := range want {
		if statuses[i] != s {
			t.Fatalf("audit[%d] = %s, want %s", i, statuses[i], s)
		}
	}
}

func TestPipelineRejectsFailedValidation(t *testing.T) {
	w, _, artifacts, _ := newWorkerFixture(t,
		stubMerger{payload: []byte("merged")},
		stubValidator{report: failingReport()})

	release := submitRelease(t, w, "1.0.0")
	rejected := waitForStatus(t, w, release.ID, domain.ReleaseRejected)
	if rejected.Error == "" {
		t.Fatalf("expected rejection detail")
	}
	if rejected.Report == nil || rejected.Report.Passed {
		t.Fatalf("expected failing report on release")
	}
	// rejected artifacts stay in the store for inspection
	if _, err := artifacts.Head(context.Background(), rejected.ArtifactKey); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}

func TestPipelineFailsOnMergeError(t *testing.T) {
	w, _, _, _ := newWorkerFixture(t,
		stubMerger{err: errors.New("rank mismatch")},
		stubValidator{report: passingReport()})

	release := submitRelease(t, w, "1.0.0")
	failed := waitForStatus(t, w, release.ID, domain.ReleaseFailed)
	if failed.Error != "merge failed: rank mismatch" {
		t.Fatalf("error = %q", failed.Error)
	}
}

func TestDeploySupersedesPreviousRelease(t *testing.T) {
	w, store, _, _ := newWorkerFixture(t,
		stubMerger{payload: []byte("merged")},
		stubValidator{report: passingReport()})

	first := submitRelease(t, w, "1.0.0")
	waitForStatus(t, w, first.ID, domain.ReleaseDeployed)

	second := submitRelease(t, w, "1.1.0")
	waitForStatus(t, w, second.ID, domain.ReleaseDeployed)

	got, _ := store.GetRelease(first.ID)
	if got.Status != domain.ReleaseSuperseded {
		t.Fatalf("first release status = %s, want superseded", got.Status)
	}
}

type stubPreference map[string]string

func (p stubPreference) PreferredVariant(capability string) (string, bool) {
	v, ok := p[capability]
	return v, ok
}

func TestDeployFlagsExperimentWinnerMismatch(t *testing.T) {
	store := memory.NewStore(nil)
	audit := &MemoryAuditLog{}
	w := NewWorker(store, blob.NewMemory(), stubMerger{payload: []byte("merged")}, stubValidator{report: passingReport()}, audit, nil)
	w.SetPreferences(stubPreference{"sentiment": "2.0.0"})
	w.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})

	release := submitRelease(t, w, "1.0.0")
	waitForStatus(t, w, release.ID, domain.ReleaseDeployed)

	deadline := time.Now().Add(time.Second)
	for {
		var deployed *AuditEntry
		for _, entry := range audit.Entries() {
			if entry.Status == domain.ReleaseDeployed {
				entry := entry
				deployed = &entry
			}
		}
		if deployed != nil {
			if deployed.Detail != "experiment winner is 2.0.0" {
				t.Fatalf("deployed audit detail = %q", deployed.Detail)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no deployed audit entry recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRollbackRestoresSupersededRelease(t *testing.T) {
	w, store, _, _ := newWorkerFixture(t,
		stubMerger{payload: []byte("merged")},
		stubValidator{report: passingReport()})

	first := submitRelease(t, w, "1.0.0")
	waitForStatus(t, w, first.ID, domain.ReleaseDeployed)
	second := submitRelease(t, w, "1.1.0")
	waitForStatus(t, w, second.ID, domain.ReleaseDeployed)

	restored, err := w.Rollback(context.Background(), "sentiment")
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if restored.ID != first.ID || restored.Status != domain.ReleaseDeployed {
		t.Fatalf("restored = %s status %s", restored.ID, restored.Status)
	}
	demoted, _ := store.GetRelease(second.ID)
	if demoted.Status != domain.ReleaseSuperseded {
		t.Fatalf("current release status = %s, want superseded", demoted.Status)
	}
}

func TestRollbackWithoutHistoryFails(t *testing.T) {
	w, _, _, _ := newWorkerFixture(t,
		stubMerger{payload: []byte("merged")},
		stubValidator{report: passingReport()})
	if _, err := w.Rollback(context.Background(), "sentiment"); err == nil {
		t.Fatalf("expected error without superseded release")
	}
}

func TestSubmitValidation(t *testing.T) {
	w, _, _, _ := newWorkerFixture(t,
		stubMerger{payload: []byte("merged")},
		stubValidator{report: passingReport()})

	ctx := context.Background()
	if _, err := w.Submit(ctx, MergeRequest{Version: "1.0.0", AdapterURIs: []string{"a"}}); err == nil {
		t.Fatalf("expected name validation")
	}
	if _, err := w.Submit(ctx, MergeRequest{Name: "x", AdapterURIs: []string{"a"}}); err == nil {
		t.Fatalf("expected version validation")
	}
	if _, err := w.Submit(ctx, MergeRequest{Name: "x", Version: "1.0.0"}); err == nil {
		t.Fatalf("expected adapter list validation")
	}
}

func TestSubmitRejectsDuplicateVersion(t *testing.T) {
	w, _, _, _ := newWorkerFixture(t,
		stubMerger{payload: []byte("merged")},
		stubValidator{report: passingReport()})

	release := submitRelease(t, w, "1.0.0")
	waitForStatus(t, w, release.ID, domain.ReleaseDeployed)
	if _, err := w.Submit(context.Background(), MergeRequest{
		Name: "sentiment", Version: "1.0.0", AdapterURIs: []string{"a"},
	}); err == nil {
		t.Fatalf("expected duplicate version rejection")
	}
}
