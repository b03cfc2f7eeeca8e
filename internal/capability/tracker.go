// Package capability tracks capability-level performance of deployed
// adapters: scored observation windows, threshold alerting, and A/B
// experiments between adapter versions.
package capability

import (
	"sort"
	"sync"
	"time"
)

const defaultWindowSize = 256

// Observation is a single scored capability invocation.
type Observation struct {
	At      time.Time     `json:"at"`
	Latency time.Duration `json:"latency"`
	Success bool          `json:"success"`
	Score   float64       `json:"score"` // quality score in [0,1]
}

// Summary aggregates a capability window.
type Summary struct {
	Capability  string        `json:"capability"`
	Count       int           `json:"count"`
	MeanScore   float64       `json:"mean_score"`
	SuccessRate float64       `json:"success_rate"`
	P95Latency  time.Duration `json:"p95_latency"`
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
}

// Tracker keeps a bounded sliding window of observations per capability.
type Tracker struct {
	mu         sync.RWMutex
	windowSize int
	windows    map[string][]Observation
	nowFn      func() time.Time
}

// NewTracker returns a tracker with the given window size per capability.
// Sizes below one fall back to the default of 256 observations.
func NewTracker(windowSize int) *Tracker {
	if windowSize < 1 {
		windowSize = defaultWindowSize
	}
	return &Tracker{
		windowSize: windowSize,
		windows:    make(map[string][]Observation),
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// Record appends an observation to the capability window, evicting the
// oldest entry once the window is full.
func (t *Tracker) Record(capability string, obs Observation) {
	if obs.At.IsZero() {
		obs.At = t.nowFn()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	window := append(t.windows[capability], obs)
	if len(window) > t.windowSize {
		window = window[len(window)-t.windowSize:]
	}
	t.windows[capability] = window
}

// Summarize computes window statistics for a capability. The second return
// is false when no observations have been recorded.
func (t *Tracker) Summarize(capability string) (Summary, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	window := t.windows[capability]
	if len(window) == 0 {
		return Summary{}, false
	}

	var scoreSum float64
	var successes int
	latencies := make([]time.Duration, 0, len(window))
	for _, obs := range window {
		scoreSum += obs.Score
		if obs.Success {
			successes++
		}
		latencies = append(latencies, obs.Latency)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	return Summary{
		Capability:  capability,
		Count:       len(window),
		MeanScore:   scoreSum / float64(len(window)),
		SuccessRate: float64(successes) / float64(len(window)),
		P95Latency:  percentile(latencies, 0.95),
		WindowStart: window[0].At,
		WindowEnd:   window[len(window)-1].At,
	}, true
}

// Capabilities lists tracked capability names, sorted.
func (t *Tracker) Capabilities() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.windows))
	for name := range t.windows {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// percentile uses the nearest-rank method on a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(float64(len(sorted)) * p)
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
