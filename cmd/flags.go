package cmd

import (
	"github.com/spf13/cobra"

	"github.com/daedaleanai/qlflow/config"
	"github.com/daedaleanai/qlflow/flow"
	"github.com/daedaleanai/qlflow/log"
)

const defaultBuildDir = "build"
const platformFlagName = "platform"

var platformPath string
var buildDir string
var toolchainVersion string
var skipOpenOCD bool

func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&platformPath, platformFlagName, "p", "", "Platform description file")
	cmd.MarkFlagRequired(platformFlagName)
	addToolchainVersionFlag(cmd)
	cmd.Flags().BoolVar(&skipOpenOCD, "no-openocd", false, "Do not generate the OpenOCD programming file")
}

func addToolchainVersionFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&toolchainVersion, "toolchain-version", "", "Release of the installed toolchain, e.g. v1.3.0")
}

func addBuildDirFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&buildDir, "build-dir", "b", "", "Directory for generated and intermediate files")
}

// getToolchainVersion returns the toolchain release given on the command line or in the configuration.
func getToolchainVersion() string {
	if toolchainVersion != "" {
		return toolchainVersion
	}
	return config.GetConfig().ToolchainVersion
}

func getBuildDir() string {
	if buildDir != "" {
		return buildDir
	}
	if dir := config.GetConfig().BuildDir; dir != "" {
		return dir
	}
	return defaultBuildDir
}

func preparePlan(designPath string) *flow.Plan {
	plan, err := flow.Prepare(flow.Options{
		DesignPath:       designPath,
		PlatformPath:     platformPath,
		ToolchainVersion: getToolchainVersion(),
		Tools:            config.GetConfig().Tools,
		SkipOpenOCD:      skipOpenOCD,
		Verbose:          log.Verbose,
	})
	if err != nil {
		log.Fatal("%s.\n", err)
	}
	log.Debug("Programming file strategy: %s.\n", plan.Pipeline.Strategy)
	return plan
}

func writePlan(plan *flow.Plan, dir string) {
	if err := plan.Write(dir); err != nil {
		log.Fatal("%s.\n", err)
	}
	log.Success("Generated files for '%s' in '%s'.\n", plan.Design.Name, dir)
}
