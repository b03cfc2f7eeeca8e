package capability

import (
	"context"
	"fmt"
	"math"
	"strings"

	"innozone/pkg/domain"
)

// zCritical95 is the two-tailed critical value at 95% confidence.
const zCritical95 = 1.96

// Experiments runs A/B comparisons between adapter versions for a
// capability. Trial outcomes accumulate on a persisted experiment; Conclude
// applies a two-proportion z-test to name a winner.
type Experiments struct {
	store     domain.PersistentStore
	zCritical float64
}

// NewExperiments constructs the experiment runner over the domain store.
func NewExperiments(store domain.PersistentStore) *Experiments {
	return &Experiments{store: store, zCritical: zCritical95}
}

// Start creates a running experiment comparing two adapter variants.
func (e *Experiments) Start(ctx context.Context, capability, variantA, variantB string) (domain.CapabilityExperiment, error) {
	if strings.TrimSpace(capability) == "" {
		return domain.CapabilityExperiment{}, fmt.Errorf("capability required")
	}
	if variantA == "" || variantB == "" {
		return domain.CapabilityExperiment{}, fmt.Errorf("both variants required")
	}
	if variantA == variantB {
		return domain.CapabilityExperiment{}, fmt.Errorf("variants must differ")
	}
	for _, existing := range e.store.ListExperiments() {
		if existing.Capability == capability && existing.Status == domain.ExperimentRunning {
			return domain.CapabilityExperiment{}, fmt.Errorf("capability %s already has a running experiment", capability)
		}
	}

	var created domain.CapabilityExperiment
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateExperiment(domain.CapabilityExperiment{
			Capability: capability,
			VariantA:   variantA,
			VariantB:   variantB,
			Status:     domain.ExperimentRunning,
		})
		return err
	})
	if err != nil {
		return domain.CapabilityExperiment{}, err
	}
	return created, nil
}

// RecordTrial adds one trial outcome for the named variant.
func (e *Experiments) RecordTrial(ctx context.Context, id, variant string, success bool) (domain.CapabilityExperiment, error) {
	var updated domain.CapabilityExperiment
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateExperiment(id, func(exp *domain.CapabilityExperiment) error {
			if exp.Status != domain.ExperimentRunning {
				return fmt.Errorf("experiment %s already concluded", id)
			}
			switch variant {
			case exp.VariantA:
				exp.TrialsA++
				if success {
					exp.SuccessA++
				}
			case exp.VariantB:
				exp.TrialsB++
				if success {
					exp.SuccessB++
				}
			default:
				return fmt.Errorf("variant %s not part of experiment", variant)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return domain.CapabilityExperiment{}, err
	}
	return updated, nil
}

// Conclude freezes the experiment and runs the significance test. The winner
// stays empty when the difference in success rates is not significant at the
// configured confidence level.
func (e *Experiments) Conclude(ctx context.Context, id string) (domain.CapabilityExperiment, error) {
	var concluded domain.CapabilityExperiment
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		concluded, err = tx.UpdateExperiment(id, func(exp *domain.CapabilityExperiment) error {
			if exp.Status != domain.ExperimentRunning {
				return fmt.Errorf("experiment %s already concluded", id)
			}
			if exp.TrialsA == 0 || exp.TrialsB == 0 {
				return fmt.Errorf("both variants need trials before concluding")
			}
			z := twoProportionZ(exp.SuccessA, exp.TrialsA, exp.SuccessB, exp.TrialsB)
			exp.ZScore = z
			exp.Status = domain.ExperimentConcluded
			if math.Abs(z) >= e.zCritical {
				if z > 0 {
					exp.Winner = exp.VariantA
				} else {
					exp.Winner = exp.VariantB
				}
			}
			return nil
		})
		return err
	})
	if err != nil {
		return domain.CapabilityExperiment{}, err
	}
	return concluded, nil
}

// PreferredVariant reports the deploy preference for a capability: the
// winner of its most recently concluded experiment, if any.
func (e *Experiments) PreferredVariant(capability string) (string, bool) {
	var best *domain.CapabilityExperiment
	for _, exp := range e.store.ListExperiments() {
		if exp.Capability != capability || exp.Status != domain.ExperimentConcluded || exp.Winner == "" {
			continue
		}
		exp := exp
		if best == nil || exp.UpdatedAt.After(best.UpdatedAt) {
			best = &exp
		}
	}
	if best == nil {
		return "", false
	}
	return best.Winner, true
}

// twoProportionZ computes the pooled two-proportion z statistic. Positive
// values favor variant A.
func twoProportionZ(successA, trialsA, successB, trialsB int) float64 {
	pA := float64(successA) / float64(trialsA)
	pB := float64(successB) / float64(trialsB)
	pooled := float64(successA+successB) / float64(trialsA+trialsB)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(trialsA) + 1/float64(trialsB)))
	if se == 0 {
		return 0
	}
	return (pA - pB) / se
}
