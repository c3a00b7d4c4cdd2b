package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"airquality-eda/internal/models"
)

// AnalyzeOptions configures the analyze command
type AnalyzeOptions struct {
	OutputFormat string
}

// Report is the full analyze output
type Report struct {
	Summary models.DataSummary     `json:"summary"`
	Missing models.MissingAnalysis `json:"missing"`
	KSTests []models.ShiftRecord   `json:"ks_tests"`
}

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd(g *GlobalOptions) *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report missing values, missingness mechanisms and imputation effects",
		Example: `  # Analyze a station file
  edactl analyze --input PRSA_Data_Dongsi_20130301-20170228.csv

  # Analyze a table as JSON
  edactl analyze --config config.yaml --table prsa_data_dongsi --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.OutputFormat, "format", "text", "Output format (text, json)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, g *GlobalOptions, opts *AnalyzeOptions) error {
	if opts.OutputFormat != "text" && opts.OutputFormat != "json" {
		return fmt.Errorf("unsupported format %q", opts.OutputFormat)
	}

	s, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	svc, _, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	report := Report{
		Summary: svc.Summary(),
		Missing: svc.GetMissingAnalysis(ctx),
		KSTests: svc.GetKSTestResults(ctx),
	}

	out := cmd.OutOrStdout()
	if opts.OutputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return writeTextReport(out, report)
}

func formatFloat(f models.Float) string {
	if f.IsNaN() {
		return "-"
	}
	return strconv.FormatFloat(float64(f), 'f', 4, 64)
}

func writeTextReport(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Source:\t%s\n", r.Summary.Source)
	fmt.Fprintf(tw, "Rows:\t%d\n", r.Summary.Rows)
	fmt.Fprintf(tw, "Columns:\t%d\n", r.Summary.Columns)
	fmt.Fprintf(tw, "Analysis variables:\t%d\n", r.Summary.AnalysisCount)
	if r.Summary.Station != "" {
		fmt.Fprintf(tw, "Station:\t%s\n", r.Summary.Station)
	}
	if r.Summary.TimeRange != nil {
		fmt.Fprintf(tw, "Time range:\t%s - %s\n",
			r.Summary.TimeRange.Start.Format("2006-01-02 15:04"),
			r.Summary.TimeRange.End.Format("2006-01-02 15:04"))
	}

	fmt.Fprintln(tw, "\nMISSING VALUES\tBEFORE\tAFTER")
	after := map[string]int{}
	for _, c := range r.Missing.After {
		after[c.Column] = c.Count
	}
	for _, c := range r.Missing.Before {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", c.Column, c.Count, after[c.Column])
	}

	fmt.Fprintln(tw, "\nCOLUMN\tMECHANISM\tMISSING\tMAX |r|")
	records := append([]models.MechanismRecord{}, r.Missing.Records...)
	sort.SliceStable(records, func(i, j int) bool { return records[i].Column < records[j].Column })
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.Column, rec.Note(), formatFloat(rec.MissingFraction), formatFloat(rec.MaxAbsCorrelation))
	}

	fmt.Fprintln(tw, "\nCOLUMN\tKS STATISTIC\tP-VALUE\tVERDICT")
	for _, rec := range r.KSTests {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.Column, formatFloat(rec.Statistic), formatFloat(rec.PValue), rec.Verdict)
	}

	return tw.Flush()
}
