package main

import (
	"github.com/spf13/cobra"

	"innozone/pkg/domain"
)

var (
	gateApprover string
	gateNotes    string
	gateProject  string
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Decide and inspect lifecycle gates",
}

var gatePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending gates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.run(cmd.Context(), "gate_pending", func() error {
			return printJSON(app.service.PendingGates(gateProject))
		})
	},
}

var gateApproveCmd = &cobra.Command{
	Use:   "approve [gate-id]",
	Short: "Approve a gate",
	Args:  cobra.ExactArgs(1),
	RunE:  decideGateRunE("gate_approve", domain.GateApproved),
}

var gateRejectCmd = &cobra.Command{
	Use:   "reject [gate-id]",
	Short: "Reject a gate",
	Args:  cobra.ExactArgs(1),
	RunE:  decideGateRunE("gate_reject", domain.GateRejected),
}

var gateWaiveCmd = &cobra.Command{
	Use:   "waive [gate-id]",
	Short: "Waive a gate",
	Args:  cobra.ExactArgs(1),
	RunE:  decideGateRunE("gate_waive", domain.GateWaived),
}

func decideGateRunE(operation string, status domain.GateStatus) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), operation, func() error {
			var gate domain.LifecycleGate
			var err error
			switch status {
			case domain.GateApproved:
				gate, _, err = app.manager.ApproveGate(cmd.Context(), args[0], gateApprover, gateNotes)
			case domain.GateRejected:
				gate, _, err = app.manager.RejectGate(cmd.Context(), args[0], gateApprover, gateNotes)
			case domain.GateWaived:
				gate, _, err = app.manager.WaiveGate(cmd.Context(), args[0], gateApprover, gateNotes)
			}
			if err != nil {
				return err
			}
			return printJSON(gate)
		})
	}
}

func init() {
	gateCmd.PersistentFlags().StringVar(&gateApprover, "approver", "", "gate approver (required for decisions)")
	gateCmd.PersistentFlags().StringVar(&gateNotes, "notes", "", "decision notes")
	gatePendingCmd.Flags().StringVar(&gateProject, "project", "", "filter by project id")

	gateCmd.AddCommand(gatePendingCmd, gateApproveCmd, gateRejectCmd, gateWaiveCmd)
}
