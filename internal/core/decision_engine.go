package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

const recommendationLogCapacity = 256

// DecisionEngine evaluates the weighted-criteria rule table against project
// performance snapshots and emits ranked recommendations. It keeps a bounded
// in-memory log of everything it has recommended and writes one record per
// triggered event through the store when one is attached.
type DecisionEngine struct {
	mu    sync.Mutex
	rules []DecisionRule
	store PersistentStore
	log   []DecisionRecommendation
	nowFn func() time.Time
}

// NewDecisionEngine constructs an engine over the supplied rule table. A nil
// store disables write-through persistence of recommendations.
func NewDecisionEngine(rules []DecisionRule, store PersistentStore) *DecisionEngine {
	if len(rules) == 0 {
		rules = DefaultDecisionRules()
	}
	return &DecisionEngine{
		rules: rules,
		store: store,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// Rules returns a copy of the active rule table.
func (e *DecisionEngine) Rules() []DecisionRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]DecisionRule(nil), e.rules...)
}

// EvaluateProject scores every applicable rule against the snapshot and
// returns recommendations whose confidence clears the rule minimum, sorted by
// urgency then confidence. ROI-based criteria are excluded from scoring while
// the project's ROI exemption is in force.
func (e *DecisionEngine) EvaluateProject(ctx context.Context, project InnovationProject, snapshot PerformanceSnapshot, history []PerformanceSnapshot) ([]DecisionRecommendation, error) {
	now := e.nowFn()
	exempt := project.ROIExempt(now)
	metrics := snapshot.MetricMap()
	streak := degradingStreak(history)

	var out []DecisionRecommendation
	for _, rule := range e.Rules() {
		if !rule.AppliesTo(project.Stage) {
			continue
		}
		score, triggered, rationale := scoreRule(rule, metrics, exempt)
		if score <= 0 {
			continue
		}
		confidence := score * historyFactor(len(history))
		if confidence < rule.MinConfidence {
			continue
		}
		rec := DecisionRecommendation{
			ProjectID:  project.ID,
			Decision:   rule.Decision,
			Score:      score,
			Confidence: confidence,
			Urgency:    boost(rule.BaseUrgency, streak),
			Impact:     boost(rule.BaseImpact, streak),
			Triggered:  triggered,
			Rationale:  rationale,
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Urgency != out[j].Urgency {
			return out[i].Urgency > out[j].Urgency
		}
		return out[i].Confidence > out[j].Confidence
	})
	persisted, err := e.record(ctx, out)
	if err != nil {
		return nil, err
	}
	return persisted, nil
}

// Log returns a copy of the bounded recommendation log, newest last.
func (e *DecisionEngine) Log() []DecisionRecommendation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]DecisionRecommendation(nil), e.log...)
}

// record appends to the bounded log and, when a store is attached, persists
// one row per recommendation. The returned slice carries store-assigned IDs.
func (e *DecisionEngine) record(ctx context.Context, recs []DecisionRecommendation) ([]DecisionRecommendation, error) {
	if len(recs) == 0 {
		return recs, nil
	}
	e.mu.Lock()
	store := e.store
	e.mu.Unlock()

	if store != nil {
		persisted := make([]DecisionRecommendation, 0, len(recs))
		_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
			persisted = persisted[:0]
			for _, rec := range recs {
				created, err := tx.CreateRecommendation(rec)
				if err != nil {
					return err
				}
				persisted = append(persisted, created)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("persist recommendations: %w", err)
		}
		recs = persisted
	}

	e.mu.Lock()
	e.log = append(e.log, recs...)
	if over := len(e.log) - recommendationLogCapacity; over > 0 {
		e.log = append([]DecisionRecommendation(nil), e.log[over:]...)
	}
	e.mu.Unlock()
	return recs, nil
}

func scoreRule(rule DecisionRule, metrics map[string]float64, roiExempt bool) (float64, []string, []string) {
	var total, hit float64
	var triggered, rationale []string
	for _, c := range rule.Criteria {
		if c.ROIBased && roiExempt {
			continue
		}
		total += c.Weight
		value, ok := metrics[c.Metric]
		if !ok {
			continue
		}
		if c.Comparison.Holds(value, c.Threshold) {
			hit += c.Weight
			triggered = append(triggered, c.Metric)
			rationale = append(rationale, fmt.Sprintf("%s %s %.2f (observed %.2f)", c.Metric, c.Comparison, c.Threshold, value))
		}
	}
	if total == 0 {
		return 0, nil, nil
	}
	return hit / total, triggered, rationale
}

// historyFactor shades confidence by observation depth: a lone snapshot is
// weak evidence, a dozen is plenty.
func historyFactor(depth int) float64 {
	f := 0.5 + 0.1*float64(depth)
	if f > 1 {
		return 1
	}
	return f
}

// degradingStreak counts consecutive snapshot pairs, newest first, where
// budget utilization rose while milestone completion did not improve.
func degradingStreak(history []PerformanceSnapshot) int {
	streak := 0
	for i := len(history) - 1; i > 0; i-- {
		cur, prev := history[i], history[i-1]
		if cur.BudgetUtilization > prev.BudgetUtilization && cur.MilestoneCompletion <= prev.MilestoneCompletion {
			streak++
			continue
		}
		break
	}
	return streak
}

func boost(base float64, streak int) float64 {
	v := base + 0.05*float64(streak)
	if v > 1 {
		return 1
	}
	return v
}
