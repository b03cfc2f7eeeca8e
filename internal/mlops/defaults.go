package mlops

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"innozone/pkg/domain"
)

// ManifestMerger is the built-in Merger. It does not compute weight deltas;
// it emits a deterministic JSON manifest describing the merge so the
// artifact pipeline, storage and rollback paths work end to end. Real merge
// backends implement Merger and replace it.
type ManifestMerger struct{}

type mergeManifest struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	BaseModel string    `json:"base_model"`
	Adapters  []string  `json:"adapters"`
	Weights   []float64 `json:"weights,omitempty"`
	MergedAt  time.Time `json:"merged_at"`
}

// Merge renders the merge manifest.
func (ManifestMerger) Merge(_ context.Context, req MergeRequest) ([]byte, error) {
	if len(req.Weights) > 0 && len(req.Weights) != len(req.AdapterURIs) {
		return nil, fmt.Errorf("weights count %d does not match adapters %d", len(req.Weights), len(req.AdapterURIs))
	}
	return json.MarshalIndent(mergeManifest{
		Name:      req.Name,
		Version:   req.Version,
		BaseModel: req.BaseModel,
		Adapters:  req.AdapterURIs,
		Weights:   req.Weights,
		MergedAt:  time.Now().UTC(),
	}, "", "  ")
}

// BasicValidator runs structural checks on a merged artifact: base model
// compatibility and artifact size budget. Capability regression checks need
// an evaluation harness and come from a custom Validator.
type BasicValidator struct {
	// MaxArtifactBytes bounds the merged artifact size. Zero disables the check.
	MaxArtifactBytes int64
}

// Validate produces the validation report.
func (v BasicValidator) Validate(_ context.Context, req MergeRequest, artifact []byte) (domain.ValidationReport, error) {
	checks := []domain.ValidationCheck{
		{
			Name:   "base_model_compatibility",
			Passed: req.BaseModel != "",
			Detail: "base model must be declared",
		},
		{
			Name:   "adapter_sources",
			Passed: len(req.AdapterURIs) > 0,
			Detail: fmt.Sprintf("%d adapter sources", len(req.AdapterURIs)),
		},
	}
	if v.MaxArtifactBytes > 0 {
		checks = append(checks, domain.ValidationCheck{
			Name:   "size_budget",
			Passed: int64(len(artifact)) <= v.MaxArtifactBytes,
			Detail: fmt.Sprintf("%d of %d bytes", len(artifact), v.MaxArtifactBytes),
		})
	}
	report := domain.ValidationReport{Checks: checks, Passed: true, GeneratedAt: time.Now().UTC()}
	for _, check := range checks {
		if !check.Passed {
			report.Passed = false
			break
		}
	}
	return report, nil
}
