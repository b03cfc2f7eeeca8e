package capability

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const defaultAlertCooldown = 15 * time.Minute

// AlertSeverity grades an alert.
type AlertSeverity string

const (
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// AlertPolicy is a threshold rule over capability summaries. Zero-valued
// thresholds are not checked; MaxP95Millis uses milliseconds so policies
// stay plain numbers in YAML.
type AlertPolicy struct {
	Name           string        `json:"name" yaml:"name"`
	Capability     string        `json:"capability" yaml:"capability"` // empty matches every capability
	MinSuccessRate float64       `json:"min_success_rate,omitempty" yaml:"min_success_rate,omitempty"`
	MaxP95Millis   int64         `json:"max_p95_millis,omitempty" yaml:"max_p95_millis,omitempty"`
	MinMeanScore   float64       `json:"min_mean_score,omitempty" yaml:"min_mean_score,omitempty"`
	Severity       AlertSeverity `json:"severity" yaml:"severity"`
}

// Alert is a fired policy breach.
type Alert struct {
	Policy     string        `json:"policy"`
	Capability string        `json:"capability"`
	Severity   AlertSeverity `json:"severity"`
	Message    string        `json:"message"`
	FiredAt    time.Time     `json:"fired_at"`
}

// AlertSink receives fired alerts.
type AlertSink interface {
	Deliver(ctx context.Context, alert Alert)
}

// MemorySink collects alerts for inspection.
type MemorySink struct {
	mu     sync.Mutex
	alerts []Alert
}

// Deliver stores the alert.
func (s *MemorySink) Deliver(_ context.Context, alert Alert) {
	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	s.mu.Unlock()
}

// Alerts returns a copy of delivered alerts.
func (s *MemorySink) Alerts() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// LoadAlertPolicies reads policies from a YAML file. An empty path returns
// no policies.
func LoadAlertPolicies(path string) ([]AlertPolicy, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alert policies: %w", err)
	}
	var doc struct {
		Policies []AlertPolicy `yaml:"policies"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse alert policies: %w", err)
	}
	for i, p := range doc.Policies {
		if err := validateAlertPolicy(p); err != nil {
			return nil, fmt.Errorf("alert policy %d: %w", i, err)
		}
	}
	return doc.Policies, nil
}

func validateAlertPolicy(p AlertPolicy) error {
	if p.Name == "" {
		return fmt.Errorf("name required")
	}
	if p.MinSuccessRate == 0 && p.MaxP95Millis == 0 && p.MinMeanScore == 0 {
		return fmt.Errorf("policy %s has no thresholds", p.Name)
	}
	switch p.Severity {
	case AlertWarning, AlertCritical:
		return nil
	case "":
		return fmt.Errorf("policy %s missing severity", p.Name)
	default:
		return fmt.Errorf("policy %s has unknown severity %q", p.Name, p.Severity)
	}
}

// AlertEngine evaluates policies against tracker summaries. A policy that
// fired for a capability is silenced for the cooldown period unless the
// breach clears in between.
type AlertEngine struct {
	mu        sync.Mutex
	tracker   *Tracker
	policies  []AlertPolicy
	sink      AlertSink
	logger    *zap.Logger
	cooldown  time.Duration
	lastFired map[string]time.Time // policy name + capability
	nowFn     func() time.Time
}

// NewAlertEngine constructs an alert engine over the tracker.
func NewAlertEngine(tracker *Tracker, policies []AlertPolicy, sink AlertSink, logger *zap.Logger) *AlertEngine {
	if sink == nil {
		sink = &MemorySink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertEngine{
		tracker:   tracker,
		policies:  append([]AlertPolicy(nil), policies...),
		sink:      sink,
		logger:    logger,
		cooldown:  defaultAlertCooldown,
		lastFired: make(map[string]time.Time),
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate checks every policy against every tracked capability and returns
// the alerts fired in this pass.
func (e *AlertEngine) Evaluate(ctx context.Context) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.nowFn()
	var fired []Alert
	for _, capName := range e.tracker.Capabilities() {
		summary, ok := e.tracker.Summarize(capName)
		if !ok {
			continue
		}
		for _, policy := range e.policies {
			if policy.Capability != "" && policy.Capability != capName {
				continue
			}
			key := policy.Name + "/" + capName
			breach := e.breachMessage(policy, summary)
			if breach == "" {
				delete(e.lastFired, key)
				continue
			}
			if last, ok := e.lastFired[key]; ok && now.Sub(last) < e.cooldown {
				continue
			}
			alert := Alert{
				Policy:     policy.Name,
				Capability: capName,
				Severity:   policy.Severity,
				Message:    breach,
				FiredAt:    now,
			}
			e.lastFired[key] = now
			e.sink.Deliver(ctx, alert)
			e.logger.Warn("capability alert fired",
				zap.String("policy", policy.Name),
				zap.String("capability", capName),
				zap.String("severity", string(policy.Severity)),
				zap.String("message", breach))
			fired = append(fired, alert)
		}
	}
	return fired
}

func (e *AlertEngine) breachMessage(policy AlertPolicy, summary Summary) string {
	if policy.MinSuccessRate > 0 && summary.SuccessRate < policy.MinSuccessRate {
		return fmt.Sprintf("success rate %.2f below %.2f", summary.SuccessRate, policy.MinSuccessRate)
	}
	if policy.MaxP95Millis > 0 && summary.P95Latency > time.Duration(policy.MaxP95Millis)*time.Millisecond {
		return fmt.Sprintf("p95 latency %s above %dms", summary.P95Latency, policy.MaxP95Millis)
	}
	if policy.MinMeanScore > 0 && summary.MeanScore < policy.MinMeanScore {
		return fmt.Sprintf("mean score %.2f below %.2f", summary.MeanScore, policy.MinMeanScore)
	}
	return ""
}
