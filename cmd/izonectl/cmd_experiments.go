package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

var (
	expCapability string
	expVariantA   string
	expVariantB   string
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Run A/B experiments between adapter versions",
}

var experimentStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start an experiment for a capability",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.run(cmd.Context(), "experiment_start", func() error {
			exp, err := app.exps.Start(cmd.Context(), expCapability, expVariantA, expVariantB)
			if err != nil {
				return err
			}
			return printJSON(exp)
		})
	},
}

var experimentRecordCmd = &cobra.Command{
	Use:   "record [experiment-id] [variant] [success]",
	Short: "Record a trial outcome",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "experiment_record", func() error {
			success, err := strconv.ParseBool(args[2])
			if err != nil {
				return err
			}
			exp, err := app.exps.RecordTrial(cmd.Context(), args[0], args[1], success)
			if err != nil {
				return err
			}
			return printJSON(exp)
		})
	},
}

var experimentConcludeCmd = &cobra.Command{
	Use:   "conclude [experiment-id]",
	Short: "Conclude an experiment and run the significance test",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.run(cmd.Context(), "experiment_conclude", func() error {
			exp, err := app.exps.Conclude(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(exp)
		})
	},
	Args: cobra.ExactArgs(1),
}

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.run(cmd.Context(), "experiment_list", func() error {
			return printJSON(app.service.Store().ListExperiments())
		})
	},
}

func init() {
	experimentStartCmd.Flags().StringVar(&expCapability, "capability", "", "capability under test (required)")
	experimentStartCmd.Flags().StringVar(&expVariantA, "variant-a", "", "first adapter version")
	experimentStartCmd.Flags().StringVar(&expVariantB, "variant-b", "", "second adapter version")

	experimentCmd.AddCommand(experimentStartCmd, experimentRecordCmd, experimentConcludeCmd, experimentListCmd)
}
