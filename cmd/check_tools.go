package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/daedaleanai/qlflow/config"
	"github.com/daedaleanai/qlflow/log"
	"github.com/daedaleanai/qlflow/render"
	"github.com/daedaleanai/qlflow/toolchain"
	"github.com/daedaleanai/qlflow/util"
)

var checkToolsCmd = &cobra.Command{
	Use:   "check-tools",
	Args:  cobra.NoArgs,
	Short: "Checks that the toolchain is installed",
	Long: `Checks that every tool run by the build can be found in PATH. Tool paths can be
overridden in the configuration file or through environment variables, e.g. SYMBIFLOW_SYNTH.`,
	Run: runCheckTools,
}

func init() {
	addToolchainVersionFlag(checkToolsCmd)
	rootCmd.AddCommand(checkToolsCmd)
}

func runCheckTools(cmd *cobra.Command, args []string) {
	version := util.Version{}
	if v := getToolchainVersion(); v != "" {
		parsed, err := util.ParseVersion(v)
		if err != nil {
			log.Fatal("Invalid toolchain version: %s.\n", err)
		}
		version = parsed
	}
	strategy := toolchain.SelectOpenOCDStrategy(version)
	log.Log("Programming file strategy: %s.\n", strategy)

	tools := toolchain.RequiredTools(strategy, config.GetConfig().Tools)
	missing := toolchain.CheckTools(tools)
	for _, tool := range missing {
		log.Error("'%s' not found.\n", tool)
	}
	if len(missing) == 0 {
		log.Success("All %d tools found.\n", len(tools))
		return
	}
	if script := os.Getenv(render.EnvVar()); script != "" {
		log.Warning("Tools may be provided by '%s', which is sourced before every stage.\n", script)
		return
	}
	os.Exit(1)
}
