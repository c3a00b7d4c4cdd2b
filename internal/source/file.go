package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"airquality-eda/internal/models"
)

// File kinds
const (
	KindCSV  = "csv"
	KindXLSX = "xlsx"
)

// KindFromPath guesses the file kind from the extension
func KindFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return KindXLSX
	default:
		return KindCSV
	}
}

// File loads a raw observation table from a CSV or XLSX file
type File struct {
	Path  string
	Kind  string
	Sheet string
}

// NewFile returns a file source; an empty kind is derived from the path
func NewFile(path, kind, sheet string) *File {
	if kind == "" {
		kind = KindFromPath(path)
	}
	return &File{Path: path, Kind: kind, Sheet: sheet}
}

// Load reads the whole file. Column names are returned as written.
func (f *File) Load(ctx context.Context) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch f.Kind {
	case KindXLSX:
		return ReadXLSX(f.Path, f.Sheet)
	case KindCSV:
		fh, err := os.Open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open csv file: %w", err)
		}
		defer fh.Close()
		return ReadCSV(fh)
	default:
		return nil, &models.ValidationError{Field: "kind", Value: f.Kind, Message: "unsupported file kind"}
	}
}

// Describe names the source for logs and summaries
func (f *File) Describe() string {
	return f.Kind + ":" + f.Path
}

// ReadCSV loads a CSV stream with a header row
func ReadCSV(r io.Reader) (*models.Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nanValues),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", df.Err)
	}
	return frameToTable(df)
}

// ReadXLSX loads a sheet whose first row is the header. An empty sheet name
// selects the first sheet.
func ReadXLSX(path, sheet string) (*models.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("xlsx open file failed: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx file %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return models.EmptyTable(), nil
	}

	return frameToTable(recordsToFrame(rows[0], rows[1:]))
}

// WriteCSV writes t, datetime first, with missing cells left empty
func WriteCSV(w io.Writer, t *models.Table) error {
	if len(t.ColumnNames()) == 0 && !t.HasTimes() {
		return nil
	}
	return tableToFrame(t).WriteCSV(w)
}
