// -- cmd/run.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/observability"
	"github.com/xkilldash9x/harvest-cli/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml> [more-workflows...]",
	Short: "Execute one or more workflow files against a browser session.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		reports := runner.New(appCfg, logger).RunAll(cmd.Context(), args)

		failed := 0
		for _, report := range reports {
			result := report.Result
			if !result.Success {
				failed++
			}
			logger.Info("Workflow finished.",
				zap.String("workflow_file", report.Path),
				zap.Bool("success", result.Success),
				zap.Int("steps_completed", result.StepsCompleted),
				zap.Int("data_extracted", result.DataExtracted),
				zap.String("output_file", result.OutputFile))

			fmt.Fprintf(cmd.OutOrStdout(), "%s: success=%t steps=%d/%d extracted=%d\n",
				report.Path, result.Success, result.StepsCompleted, result.TotalSteps, result.DataExtracted)
			for _, message := range result.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", message)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d workflows failed", failed, len(reports))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
