package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"airquality-eda/cmd/edactl/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "edactl",
		Short: "Offline missing-data analysis for air-quality observations",
		Long: `Run the imputation pipeline, missingness classification and
distribution-shift tests over a CSV/XLSX file or a database table.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	globals := commands.RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(commands.NewAnalyzeCmd(globals))
	rootCmd.AddCommand(commands.NewImputeCmd(globals))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
