package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"innozone/pkg/domain"
)

var (
	admitCode        string
	admitTitle       string
	admitTeam        string
	admitBudget      float64
	admitROITarget   float64
	admitExemptDays  int
	milestoneName    string
	milestoneWeight  float64
	milestoneDue     string
	haltReason       string
	engagementScore  float64
	spendAmount      float64
	roiCurrent       float64
	exemptUntilInput string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage innovation projects",
}

var projectAdmitCmd = &cobra.Command{
	Use:   "admit",
	Short: "Admit a new project into the innovation zone",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.run(cmd.Context(), "project_admit", func() error {
			project := domain.InnovationProject{
				Code:            admitCode,
				Title:           admitTitle,
				Team:            admitTeam,
				BudgetAllocated: admitBudget,
				ROITarget:       admitROITarget,
			}
			if admitExemptDays > 0 {
				until := time.Now().UTC().AddDate(0, 0, admitExemptDays)
				project.ROIExemptUntil = &until
			}
			created, _, err := app.manager.Admit(cmd.Context(), project)
			if err != nil {
				return err
			}
			return printJSON(created)
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active projects",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.run(cmd.Context(), "project_list", func() error {
			return printJSON(app.service.ListActiveProjects())
		})
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "project_show", func() error {
			project, err := app.service.GetProject(args[0])
			if err != nil {
				return err
			}
			return printJSON(project)
		})
	},
}

var projectAdvanceCmd = &cobra.Command{
	Use:   "advance [project-id]",
	Short: "Advance a project to its next stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "project_advance", func() error {
			project, result, err := app.manager.Advance(cmd.Context(), args[0])
			if err != nil {
				printWarnings(result)
				return err
			}
			printWarnings(result)
			return printJSON(project)
		})
	},
}

var projectHaltCmd = &cobra.Command{
	Use:   "halt [project-id]",
	Short: "Halt a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "project_halt", func() error {
			project, _, err := app.manager.Halt(cmd.Context(), args[0], haltReason)
			if err != nil {
				return err
			}
			return printJSON(project)
		})
	},
}

var projectResumeCmd = &cobra.Command{
	Use:   "resume [project-id]",
	Short: "Resume a halted project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "project_resume", func() error {
			project, _, err := app.manager.Resume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(project)
		})
	},
}

var projectRetireCmd = &cobra.Command{
	Use:   "retire [project-id]",
	Short: "Retire a project from the innovation zone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "project_retire", func() error {
			_, err := app.manager.Retire(cmd.Context(), args[0])
			return err
		})
	},
}

var projectSnapshotCmd = &cobra.Command{
	Use:   "snapshot [project-id]",
	Short: "Take a performance snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "project_snapshot", func() error {
			snapshot, err := app.monitor.Snapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(snapshot)
		})
	},
}

var projectSpendCmd = &cobra.Command{
	Use:   "spend [project-id]",
	Short: "Record budget spend against a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "project_spend", func() error {
			project, result, err := app.service.RecordSpend(cmd.Context(), args[0], spendAmount)
			if err != nil {
				return err
			}
			printWarnings(result)
			return printJSON(project)
		})
	},
}

var projectROICmd = &cobra.Command{
	Use:   "roi [project-id]",
	Short: "Record current ROI for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "project_roi", func() error {
			project, result, err := app.service.RecordROI(cmd.Context(), args[0], roiCurrent)
			if err != nil {
				return err
			}
			printWarnings(result)
			return printJSON(project)
		})
	},
}

var projectExemptCmd = &cobra.Command{
	Use:   "extend-exemption [project-id]",
	Short: "Extend a project's ROI exemption window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "project_extend_exemption", func() error {
			until, err := time.Parse("2006-01-02", exemptUntilInput)
			if err != nil {
				return fmt.Errorf("parse --until: %w", err)
			}
			project, _, err := app.service.ExtendROIExemption(cmd.Context(), args[0], until)
			if err != nil {
				return err
			}
			return printJSON(project)
		})
	},
}

var projectEngagementCmd = &cobra.Command{
	Use:   "engagement [project-id]",
	Short: "Record a stakeholder engagement score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "project_engagement", func() error {
			if _, err := app.service.GetProject(args[0]); err != nil {
				return err
			}
			app.monitor.RecordEngagement(args[0], engagementScore)
			return nil
		})
	},
}

var milestoneAddCmd = &cobra.Command{
	Use:   "milestone-add [project-id]",
	Short: "Add a milestone to a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "milestone_add", func() error {
			milestone := domain.Milestone{
				ProjectID: args[0],
				Name:      milestoneName,
				Weight:    milestoneWeight,
			}
			if milestoneDue != "" {
				due, err := time.Parse("2006-01-02", milestoneDue)
				if err != nil {
					return fmt.Errorf("parse --due: %w", err)
				}
				milestone.DueAt = &due
			}
			created, _, err := app.service.CreateMilestone(cmd.Context(), milestone)
			if err != nil {
				return err
			}
			return printJSON(created)
		})
	},
}

var milestoneCompleteCmd = &cobra.Command{
	Use:   "milestone-complete [milestone-id]",
	Short: "Mark a milestone completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "milestone_complete", func() error {
			milestone, _, err := app.service.CompleteMilestone(cmd.Context(), args[0], time.Now().UTC())
			if err != nil {
				return err
			}
			return printJSON(milestone)
		})
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one decision pass over every active project",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.run(cmd.Context(), "tick", func() error {
			if err := app.manager.Tick(cmd.Context()); err != nil {
				return err
			}
			return printJSON(app.decisions.Log())
		})
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printWarnings(result domain.Result) {
	for _, violation := range result.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", violation.Rule, violation.Message)
	}
}

func init() {
	projectAdmitCmd.Flags().StringVar(&admitCode, "code", "", "project code (required)")
	projectAdmitCmd.Flags().StringVar(&admitTitle, "title", "", "project title (required)")
	projectAdmitCmd.Flags().StringVar(&admitTeam, "team", "", "owning team")
	projectAdmitCmd.Flags().Float64Var(&admitBudget, "budget", 0, "allocated budget")
	projectAdmitCmd.Flags().Float64Var(&admitROITarget, "roi-target", 0, "target ROI ratio")
	projectAdmitCmd.Flags().IntVar(&admitExemptDays, "roi-exempt-days", 0, "ROI exemption window in days")

	projectHaltCmd.Flags().StringVar(&haltReason, "reason", "", "halt reason")
	projectSpendCmd.Flags().Float64Var(&spendAmount, "amount", 0, "spend amount")
	projectROICmd.Flags().Float64Var(&roiCurrent, "current", 0, "current ROI ratio")
	projectExemptCmd.Flags().StringVar(&exemptUntilInput, "until", "", "exemption end date (YYYY-MM-DD)")
	projectEngagementCmd.Flags().Float64Var(&engagementScore, "score", 0, "engagement score in [0,1]")

	milestoneAddCmd.Flags().StringVar(&milestoneName, "name", "", "milestone name")
	milestoneAddCmd.Flags().Float64Var(&milestoneWeight, "weight", 1, "milestone weight")
	milestoneAddCmd.Flags().StringVar(&milestoneDue, "due", "", "due date (YYYY-MM-DD)")

	projectCmd.AddCommand(projectAdmitCmd, projectListCmd, projectShowCmd, projectAdvanceCmd,
		projectHaltCmd, projectResumeCmd, projectRetireCmd, projectSnapshotCmd,
		projectSpendCmd, projectROICmd, projectExemptCmd, projectEngagementCmd,
		milestoneAddCmd, milestoneCompleteCmd)
}
