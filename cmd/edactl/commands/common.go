package commands

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"airquality-eda/internal/config"
	"airquality-eda/internal/repository"
	"airquality-eda/internal/services"
	"airquality-eda/internal/source"
	"airquality-eda/pkg/database"
	"airquality-eda/pkg/logging"
)

// GlobalOptions are the flags shared by every subcommand
type GlobalOptions struct {
	ConfigFile string
	Input      string
	Sheet      string
	Table      string
	Query      string
	Verbose    bool

	MARCorrelation   float64
	MNARRate         float64
	Alpha            float64
	IncludeDateParts bool
}

// RegisterGlobalFlags adds the source and threshold flags to root
func RegisterGlobalFlags(root *cobra.Command) *GlobalOptions {
	g := &GlobalOptions{}
	flags := root.PersistentFlags()
	flags.StringVar(&g.ConfigFile, "config", "", "config file (database connection and analysis defaults)")
	flags.StringVarP(&g.Input, "input", "i", "", "CSV or XLSX file to analyze")
	flags.StringVar(&g.Sheet, "sheet", "", "XLSX sheet (default: first sheet)")
	flags.StringVar(&g.Table, "table", "", "database table to analyze")
	flags.StringVar(&g.Query, "query", "", "ad-hoc SQL query to analyze")
	flags.BoolVarP(&g.Verbose, "verbose", "v", false, "log pipeline progress to stderr")
	flags.Float64Var(&g.MARCorrelation, "mar-threshold", 0, "MAR correlation threshold (default from config)")
	flags.Float64Var(&g.MNARRate, "mnar-rate", 0, "MNAR missing-rate threshold (default from config)")
	flags.Float64Var(&g.Alpha, "alpha", 0, "KS significance level (default from config)")
	flags.BoolVar(&g.IncludeDateParts, "include-date-parts", false, "keep year/month/day/hour as analysis columns")
	return g
}

// session is an opened source with the options to analyze it
type session struct {
	source  services.TableSource
	options services.AnalysisOptions
	logger  *logging.StructuredLogger
	closer  io.Closer
}

func (s *session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (g *GlobalOptions) open(cmd *cobra.Command) (*session, error) {
	if g.Input == "" && g.Table == "" && g.Query == "" {
		return nil, errors.New("one of --input, --table or --query is required")
	}

	cfg, err := config.LoadConfig(g.ConfigFile)
	if err != nil {
		return nil, err
	}

	opts, err := services.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("mar-threshold") {
		opts.MARCorrelation = g.MARCorrelation
	}
	if flags.Changed("mnar-rate") {
		opts.MNARRate = g.MNARRate
	}
	if flags.Changed("alpha") {
		opts.KSAlpha = g.Alpha
	}
	if flags.Changed("include-date-parts") {
		opts.IncludeDateParts = g.IncludeDateParts
	}

	logger := logging.NewNopLogger()
	if g.Verbose {
		logger = logging.NewStructuredLogger("edactl", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
		logger.SetFormat("text")
		logger.SetOutput(cmd.ErrOrStderr())
	}

	s := &session{options: opts, logger: logger}
	if g.Input != "" {
		s.source = source.NewFile(g.Input, "", g.Sheet)
		return s, nil
	}

	db, err := database.Open(cfg.DatabaseConfig(), logger, nil)
	if err != nil {
		return nil, err
	}
	s.closer = db
	s.source = services.NewDatabaseSource(repository.NewObservationRepository(db, logger, nil), g.Table, g.Query)
	return s, nil
}

// snapshot loads the source and runs the pipeline; a failed load is an error
func (s *session) snapshot(ctx context.Context) (*services.AnalysisService, *services.Snapshot, error) {
	svc := services.NewAnalysisService(s.source, s.options, s.logger, nil)
	snap := svc.Start(ctx)
	if snap.LoadErr != nil {
		return nil, nil, snap.LoadErr
	}
	return svc, snap, nil
}
