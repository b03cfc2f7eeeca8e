package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"innozone/internal/mlops"
	"innozone/pkg/domain"
)

var (
	releaseName      string
	releaseVersion   string
	releaseBaseModel string
	releaseAdapters  []string
	releaseWeights   []float64
	releaseWait      time.Duration
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Manage adapter release pipelines",
}

var releaseSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit an adapter merge for release",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.run(cmd.Context(), "release_submit", func() error {
			release, err := app.worker.Submit(cmd.Context(), mlops.MergeRequest{
				Name:        releaseName,
				Version:     releaseVersion,
				BaseModel:   releaseBaseModel,
				AdapterURIs: releaseAdapters,
				Weights:     releaseWeights,
			})
			if err != nil {
				return err
			}
			if releaseWait > 0 {
				release, err = waitForTerminal(release.ID, releaseWait)
				if err != nil {
					return err
				}
			}
			return printJSON(release)
		})
	},
}

var releaseStatusCmd = &cobra.Command{
	Use:   "status [release-id]",
	Short: "Show a release",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "release_status", func() error {
			release, ok := app.worker.Release(args[0])
			if !ok {
				return fmt.Errorf("release %s not found", args[0])
			}
			return printJSON(release)
		})
	},
}

var releaseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List releases",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.run(cmd.Context(), "release_list", func() error {
			return printJSON(app.service.Store().ListReleases())
		})
	},
}

var releaseRollbackCmd = &cobra.Command{
	Use:   "rollback [adapter-name]",
	Short: "Roll an adapter back to its previous deployed release",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "release_rollback", func() error {
			restored, err := app.worker.Rollback(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(restored)
		})
	},
}

func waitForTerminal(id string, limit time.Duration) (domain.AdapterRelease, error) {
	deadline := time.Now().Add(limit)
	for {
		release, ok := app.worker.Release(id)
		if ok {
			switch release.Status {
			case domain.ReleaseDeployed, domain.ReleaseRejected, domain.ReleaseFailed:
				return release, nil
			}
		}
		if time.Now().After(deadline) {
			return release, fmt.Errorf("release %s still %s after %s", id, release.Status, limit)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func init() {
	releaseSubmitCmd.Flags().StringVar(&releaseName, "name", "", "adapter name (required)")
	releaseSubmitCmd.Flags().StringVar(&releaseVersion, "version", "", "release version (required)")
	releaseSubmitCmd.Flags().StringVar(&releaseBaseModel, "base-model", "", "base model identifier")
	releaseSubmitCmd.Flags().StringArrayVar(&releaseAdapters, "adapter", nil, "adapter source URI (repeatable)")
	releaseSubmitCmd.Flags().Float64SliceVar(&releaseWeights, "weight", nil, "merge weight per adapter")
	releaseSubmitCmd.Flags().DurationVar(&releaseWait, "wait", 10*time.Second, "wait for a terminal status (0 to return immediately)")

	releaseCmd.AddCommand(releaseSubmitCmd, releaseStatusCmd, releaseListCmd, releaseRollbackCmd)
}
