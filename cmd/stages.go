package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stagesCmd = &cobra.Command{
	Use:   "stages <design.yaml>",
	Args:  cobra.ExactArgs(1),
	Short: "Prints the toolchain commands",
	Long:  `Prints the command of every toolchain stage, in the order they run.`,
	Run:   runStages,
}

func init() {
	addPlanFlags(stagesCmd)
	rootCmd.AddCommand(stagesCmd)
}

func runStages(cmd *cobra.Command, args []string) {
	plan := preparePlan(args[0])
	for _, c := range plan.Pipeline.Commands {
		fmt.Printf("%-16s %s\n", c.Stage.Name, c)
	}
}
