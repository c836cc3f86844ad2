package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daedaleanai/qlflow/log"
	"github.com/daedaleanai/qlflow/render"
	"github.com/daedaleanai/qlflow/toolchain"
	"github.com/daedaleanai/qlflow/util"
)

const buildLogFileName = "build.log"

var buildCmd = &cobra.Command{
	Use:   "build <design.yaml>",
	Args:  cobra.ExactArgs(1),
	Short: "Builds the bitstream of a design",
	Long: `Generates the toolchain input files and runs synthesis, packing, placement, routing,
FASM and bitstream generation, and finally generates the OpenOCD programming file.
The build stops at the first failing stage.`,
	Run: runBuild,
}

var outputDir string
var dryRun bool

func init() {
	addPlanFlags(buildCmd)
	addBuildDirFlag(buildCmd)
	buildCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory receiving the bitstream and the programming file")
	buildCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Generate the files but do not run the toolchain")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) {
	plan := preparePlan(args[0])
	dir := getBuildDir()
	writePlan(plan, dir)
	if dryRun {
		log.Log("Run '%s' to build the design.\n", filepath.Join(dir, plan.BuildScript()))
		return
	}

	executor := toolchain.NewProcessExecutor(render.EnvVar())
	if executor.EnvScript == "" {
		if missing := toolchain.CheckTools(plan.Pipeline.Tools()); len(missing) > 0 {
			log.Warning("Tools not found in PATH: %v. Set %s to a script setting up the toolchain.\n", missing, render.EnvVar())
		}
	}

	logFilePath := filepath.Join(dir, buildLogFileName)
	if !log.Verbose {
		logFile, err := os.OpenFile(logFilePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, util.FileMode)
		if err != nil {
			log.Fatal("Failed to create build log: %s.\n", err)
		}
		defer logFile.Close()
		executor.Stdout = logFile
		executor.Stderr = logFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := toolchain.Driver{
		Executor:  executor,
		BuildDir:  dir,
		OutputDir: outputDir,
		Progress:  log.ShowSpinner(),
	}
	products, err := driver.Run(ctx, plan.Pipeline)
	if err != nil {
		if !log.Verbose {
			log.Error("Tool output is in '%s'.\n", logFilePath)
		}
		log.Fatal("%s.\n", err)
	}
	for _, product := range products {
		log.Success("Built '%s'.\n", product)
	}
}
