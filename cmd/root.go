package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/daedaleanai/qlflow/log"
)

var rootCmd = &cobra.Command{
	Use:   "qlflow",
	Short: "FPGA build flow for QuickLogic EOS S3 devices",
	Long: `qlflow turns an elaborated design into a bitstream for QuickLogic EOS S3 devices.
It provisions the default clock domain of the platform, generates the constraint files
and runs the QuickLogic SymbiFlow toolchain.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.PersistentFlags().BoolVarP(&log.Verbose, "verbose", "v", false, "Print debug output")
	if rootCmd.Execute() != nil {
		os.Exit(1)
	}
}
