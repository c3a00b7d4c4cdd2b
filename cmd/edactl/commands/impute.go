package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"airquality-eda/internal/source"
)

// ImputeOptions configures the impute command
type ImputeOptions struct {
	OutputFile string
	Original   bool
}

// NewImputeCmd creates the impute command
func NewImputeCmd(g *GlobalOptions) *cobra.Command {
	opts := &ImputeOptions{}

	cmd := &cobra.Command{
		Use:   "impute",
		Short: "Write the imputed observation table as CSV",
		Example: `  # Impute a file to stdout
  edactl impute --input dongsi.csv

  # Write the imputed table to a file
  edactl impute --input dongsi.csv --output dongsi_imputed.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpute(cmd, g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "-", "Output file (- for stdout)")
	cmd.Flags().BoolVar(&opts.Original, "original", false, "write the normalized table before imputation instead")
	return cmd
}

func runImpute(cmd *cobra.Command, g *GlobalOptions, opts *ImputeOptions) error {
	s, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	_, snap, err := s.snapshot(cmd.Context())
	if err != nil {
		return err
	}

	table := snap.Imputed
	if opts.Original {
		table = snap.Original
	}

	out := cmd.OutOrStdout()
	if opts.OutputFile != "-" {
		f, err := os.Create(opts.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := source.WriteCSV(out, table); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	if len(snap.Report.Unfilled) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "columns left with missing values: %v\n", snap.Report.Unfilled)
	}
	return nil
}
