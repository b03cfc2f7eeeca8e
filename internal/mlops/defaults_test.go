package mlops

import (
	"context"
	"encoding/json"
	"testing"
)

func TestManifestMergerEncodesSources(t *testing.T) {
	req := MergeRequest{
		Name:        "sentiment",
		Version:     "1.0.0",
		BaseModel:   "llm-7b",
		AdapterURIs: []string{"a", "b"},
		Weights:     []float64{0.7, 0.3},
	}
	payload, err := ManifestMerger{}.Merge(context.Background(), req)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	var manifest mergeManifest
	if err := json.Unmarshal(payload, &manifest); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if manifest.BaseModel != "llm-7b" || len(manifest.Adapters) != 2 {
		t.Fatalf("manifest = %+v", manifest)
	}
}

func TestManifestMergerRejectsWeightMismatch(t *testing.T) {
	_, err := ManifestMerger{}.Merge(context.Background(), MergeRequest{
		Name: "x", Version: "1", AdapterURIs: []string{"a", "b"}, Weights: []float64{1.0},
	})
	if err == nil {
		t.Fatalf("expected weight mismatch error")
	}
}

func TestBasicValidatorChecks(t *testing.T) {
	v := BasicValidator{MaxArtifactBytes: 4}
	report, err := v.Validate(context.Background(), MergeRequest{BaseModel: "llm-7b", AdapterURIs: []string{"a"}}, []byte("12345"))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.Passed {
		t.Fatalf("oversized artifact should fail")
	}

	report, err = v.Validate(context.Background(), MergeRequest{BaseModel: "llm-7b", AdapterURIs: []string{"a"}}, []byte("123"))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !report.Passed {
		t.Fatalf("report = %+v", report)
	}

	report, _ = v.Validate(context.Background(), MergeRequest{AdapterURIs: []string{"a"}}, nil)
	if report.Passed {
		t.Fatalf("missing base model should fail")
	}
}
