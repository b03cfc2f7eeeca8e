package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"innozone/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		p, e := tx.CreateProject(domain.InnovationProject{Code: "IZ-100", Title: "Persist", Stage: domain.StageConcept, IsActive: true})
		if e != nil {
			return e
		}
		_, e = tx.CreateGate(domain.LifecycleGate{ProjectID: p.ID, FromStage: domain.StageConcept, ToStage: domain.StageFeasibility})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if got := len(reloaded.ListProjects()); got != 1 {
		t.Fatalf("expected 1 project, got %d", got)
	}
	if got := len(reloaded.ListGates()); got != 1 {
		t.Fatalf("expected 1 gate, got %d", got)
	}
}

func TestSQLiteStoreCreatesStateTable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var name string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='state'").Scan(&name); err != nil {
		t.Fatalf("lookup state table: %v", err)
	}
	if name != "state" {
		t.Fatalf("expected state table, got %s", name)
	}
}

func TestSQLiteStoreSnapshotsEveryBucket(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateProject(domain.InnovationProject{Code: "IZ-101"})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	var count int
	if err := store.DB().QueryRow("SELECT COUNT(*) FROM state").Scan(&count); err != nil {
		t.Fatalf("count buckets: %v", err)
	}
	if count != len(sqliteBuckets) {
		t.Fatalf("expected %d buckets persisted, got %d", len(sqliteBuckets), count)
	}
}
