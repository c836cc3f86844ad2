package cmd

import (
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render <design.yaml>",
	Args:  cobra.ExactArgs(1),
	Short: "Generates the toolchain input files",
	Long: `Elaborates the design against the platform and generates the netlists, the pin,
attribute and timing constraints and the build script without running the toolchain.`,
	Run: runRender,
}

func init() {
	addPlanFlags(renderCmd)
	addBuildDirFlag(renderCmd)
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) {
	writePlan(preparePlan(args[0]), getBuildDir())
}
