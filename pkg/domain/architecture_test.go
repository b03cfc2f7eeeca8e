package domain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// The domain layer stays free of internal packages so rules, persistence
// backends and orchestration can all depend on it without cycles.
func TestDomainDoesNotImportInternal(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	entries, err := os.ReadDir(wd)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(wd, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if q := quotedImport(strings.TrimSpace(line)); q != "" && strings.Contains(q, "/internal/") {
				t.Errorf("%s imports internal package %s", name, q)
			}
		}
	}
}

// quotedImport returns the first double-quoted literal in a line, or "".
func quotedImport(line string) string {
	start := strings.Index(line, "\"")
	if start == -1 {
		return ""
	}
	rest := line[start+1:]
	end := strings.Index(rest, "\"")
	if end == -1 {
		return ""
	}
	return rest[:end]
}
