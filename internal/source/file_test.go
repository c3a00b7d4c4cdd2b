package source

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"airquality-eda/internal/models"
)

const prsaSample = `No,year,month,day,hour,PM2.5,PM10,TEMP,wd,WSPM,station
1,2013,3,1,0,9,9,-0.5,NNW,5.7,Dongsi
2,2013,3,1,1,NA,4,-0.7,,3.9,Dongsi
3,2013,3,1,2,3,NA,NA,NW,NA,Dongsi
`

func TestReadCSV(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(prsaSample))
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"No", "year", "month", "day", "hour", "PM2.5", "PM10", "TEMP", "wd", "WSPM", "station"}, table.ColumnNames())

	pm, ok := table.Column("PM2.5")
	require.True(t, ok)
	assert.Equal(t, models.KindNumeric, pm.Kind)
	assert.Equal(t, 9.0, pm.Floats[0])
	assert.True(t, math.IsNaN(pm.Floats[1]))

	wd, _ := table.Column("wd")
	assert.Equal(t, models.KindText, wd.Kind)
	assert.Equal(t, []string{"NNW", "", "NW"}, wd.Texts)

	station, _ := table.Column("station")
	assert.Equal(t, models.KindText, station.Kind)
}

func TestReadCSV_Malformed(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)
}

func TestFile_LoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "PRSA_Data_Dongsi.csv")
	require.NoError(t, os.WriteFile(path, []byte(prsaSample), 0o600))

	src := NewFile(path, "", "")
	assert.Equal(t, KindCSV, src.Kind)
	assert.Equal(t, "csv:"+path, src.Describe())

	table, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
}

func TestFile_LoadMissing(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "absent.csv"), KindCSV, "").Load(context.Background())
	assert.Error(t, err)

	_, err = NewFile("data.parquet", "parquet", "").Load(context.Background())
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prsa.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"year", "month", "day", "hour", "PM10", "wd"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{2013, 3, 1, 0, 12.5, "N"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{2013, 3, 1, 1, "", "E"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{2013, 3, 1, 2, 14}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := NewFile(path, "", "").Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	pm, _ := table.Column("PM10")
	assert.Equal(t, models.KindNumeric, pm.Kind)
	assert.Equal(t, 12.5, pm.Floats[0])
	assert.True(t, math.IsNaN(pm.Floats[1]))
	assert.Equal(t, 14.0, pm.Floats[2])

	wd, _ := table.Column("wd")
	assert.Equal(t, []string{"N", "E", ""}, wd.Texts)

	_, err = ReadXLSX(path, "NoSuchSheet")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	t0 := time.Date(2013, 3, 1, 0, 0, 0, 0, time.UTC)
	table, err := models.NewTable([]models.Column{
		{Name: "pm10", Kind: models.KindNumeric, Floats: []float64{1.5, math.NaN()}},
		{Name: "wd", Kind: models.KindText, Texts: []string{"N", ""}},
	}, []time.Time{t0, {}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))
	assert.Equal(t, "datetime,pm10,wd\n2013-03-01 00:00:00,1.5,N\n,,\n", buf.String())

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, back.Len())
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, models.EmptyTable()))
	assert.Empty(t, buf.String())
}
