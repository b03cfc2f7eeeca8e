package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryPutGetDelete(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, err := store.Put(ctx, "adapters/x/v1", strings.NewReader("weights"), PutOptions{ContentType: "application/octet-stream"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "adapters/x/v1", strings.NewReader("weights"), PutOptions{}); err == nil {
		t.Fatalf("duplicate put should fail")
	}

	info, rc, err := store.Get(ctx, "adapters/x/v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "weights" {
		t.Fatalf("data = %q", data)
	}
	if info.ContentType != "application/octet-stream" {
		t.Fatalf("content type = %q", info.ContentType)
	}

	existed, err := store.Delete(ctx, "adapters/x/v1")
	if err != nil || !existed {
		t.Fatalf("delete = (%v, %v)", existed, err)
	}
	if _, _, err := store.Get(ctx, "adapters/x/v1"); err == nil {
		t.Fatalf("get after delete should fail")
	}
}

func TestMemoryListSortedByPrefix(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	for _, key := range []string{"b/2", "a/1", "a/2"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "a/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "a/1" || infos[1].Key != "a/2" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
}

func TestMemoryPresignUnsupported(t *testing.T) {
	store := NewMemory()
	if _, err := store.PresignURL(context.Background(), "a", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}
