package source

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"airquality-eda/internal/models"
)

// nanValues are the cell spellings gota should load as missing
var nanValues = []string{"", "NA", "NaN", "nan", "null", "NULL", "None", "N/A"}

// frameToTable converts a string-typed dataframe into a raw observation
// table, inferring each column's kind from its cells
func frameToTable(df dataframe.DataFrame) (*models.Table, error) {
	if df.Err != nil {
		return nil, df.Err
	}

	names := df.Names()
	cols := make([]models.Column, 0, len(names))
	for _, name := range names {
		s := df.Col(name)
		if s.Err != nil {
			return nil, fmt.Errorf("column %q: %w", name, s.Err)
		}
		cells := s.Records()
		for i, missing := range s.IsNaN() {
			if missing {
				cells[i] = ""
			}
		}
		cols = append(cols, models.InferColumn(name, cells))
	}
	return models.NewTable(cols, nil)
}

// recordsToFrame builds a string dataframe from a header row and data rows
// the way spreadsheet sheets are loaded; short rows are padded
func recordsToFrame(header []string, rows [][]string) dataframe.DataFrame {
	columns := make([][]string, len(header))
	for i := range columns {
		columns[i] = make([]string, 0, len(rows))
	}
	for _, row := range rows {
		for i := range header {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			columns[i] = append(columns[i], cell)
		}
	}

	list := make([]series.Series, len(header))
	for i, name := range header {
		list[i] = series.New(columns[i], series.String, name)
	}
	return dataframe.New(list...)
}

// tableToFrame renders every column, the datetime axis first, as strings
func tableToFrame(t *models.Table) dataframe.DataFrame {
	names := t.ColumnNames()
	if t.HasTimes() {
		names = append([]string{models.DatetimeColumn}, names...)
	}

	list := make([]series.Series, 0, len(names))
	for _, name := range names {
		cells := make([]string, t.Len())
		for r := range cells {
			cells[r] = t.Cell(r, name)
		}
		list = append(list, series.New(cells, series.String, name))
	}
	return dataframe.New(list...)
}
