package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"innozone/internal/capability"
)

var (
	capScore   float64
	capLatency time.Duration
	capFailed  bool
)

var capabilityCmd = &cobra.Command{
	Use:   "capability",
	Short: "Track capability performance and evaluate alert policies",
}

var capabilityRecordCmd = &cobra.Command{
	Use:   "record [capability]",
	Short: "Append a scored observation and print the updated window summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "capability_record", func() error {
			obs := capability.Observation{
				At:      time.Now().UTC(),
				Latency: capLatency,
				Success: !capFailed,
				Score:   capScore,
			}
			if err := capability.AppendObservation(app.cfg.ObservationLogPath, args[0], obs); err != nil {
				return err
			}
			tracker, err := app.loadTracker()
			if err != nil {
				return err
			}
			summary, _ := tracker.Summarize(args[0])
			return printJSON(summary)
		})
	},
}

var capabilitySummaryCmd = &cobra.Command{
	Use:   "summary [capability]",
	Short: "Summarize observation windows from the observation log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "capability_summary", func() error {
			tracker, err := app.loadTracker()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				summary, ok := tracker.Summarize(args[0])
				if !ok {
					return fmt.Errorf("no observations for capability %q", args[0])
				}
				return printJSON(summary)
			}
			summaries := make([]capability.Summary, 0)
			for _, name := range tracker.Capabilities() {
				if summary, ok := tracker.Summarize(name); ok {
					summaries = append(summaries, summary)
				}
			}
			return printJSON(summaries)
		})
	},
}

var capabilityAlertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Evaluate alert policies against the observation log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.run(cmd.Context(), "capability_alerts", func() error {
			tracker, err := app.loadTracker()
			if err != nil {
				return err
			}
			policies, err := capability.LoadAlertPolicies(app.cfg.AlertPoliciesPath)
			if err != nil {
				return err
			}
			if len(policies) == 0 {
				return fmt.Errorf("no alert policies configured, set INNOZONE_ALERT_POLICIES")
			}
			engine := capability.NewAlertEngine(tracker, policies, &capability.MemorySink{}, app.logger)
			fired := engine.Evaluate(cmd.Context())
			if fired == nil {
				fired = []capability.Alert{}
			}
			return printJSON(fired)
		})
	},
}

// loadTracker replays the observation log into a fresh tracker.
func (a *application) loadTracker() (*capability.Tracker, error) {
	tracker := capability.NewTracker(0)
	if _, err := capability.LoadObservations(a.cfg.ObservationLogPath, tracker); err != nil {
		return nil, err
	}
	return tracker, nil
}

func init() {
	capabilityRecordCmd.Flags().Float64Var(&capScore, "score", 0, "quality score in [0,1]")
	capabilityRecordCmd.Flags().DurationVar(&capLatency, "latency", 0, "invocation latency, e.g. 120ms")
	capabilityRecordCmd.Flags().BoolVar(&capFailed, "failed", false, "mark the invocation as failed")

	capabilityCmd.AddCommand(capabilityRecordCmd, capabilitySummaryCmd, capabilityAlertsCmd)
}
