package repository

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"airquality-eda/internal/models"
	"airquality-eda/pkg/database"
	"airquality-eda/pkg/logging"
	"airquality-eda/pkg/metrics"
)

// ObservationRepository provides access to observation tables in the
// tabular store
type ObservationRepository interface {
	// Read operations
	LoadTable(ctx context.Context, table string) (*models.Table, error)
	LoadQuery(ctx context.Context, query string, args ...interface{}) (*models.Table, error)
	TableExists(ctx context.Context, table string) (bool, error)

	// Write operations
	CreateTable(ctx context.Context, table string, t *models.Table) error
	InsertRows(ctx context.Context, table string, t *models.Table, from, to int) error

	// Utility operations
	HealthCheck(ctx context.Context) error
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTableName rejects anything but a plain, optionally schema
// qualified, SQL identifier
func ValidateTableName(table string) error {
	if !identifierPattern.MatchString(table) {
		return &models.ValidationError{Field: "table", Value: table, Message: "invalid table name"}
	}
	return nil
}

func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// quoteColumn quotes a column name as a single identifier, dots included
func quoteColumn(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// observationRepository implements ObservationRepository
type observationRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ObservationRepository {
	return &observationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// LoadTable reads every row of table
func (r *observationRepository) LoadTable(ctx context.Context, table string) (*models.Table, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}

	exists, err := r.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Resource: "table", ID: table}
	}

	return r.load(ctx, "load_table", "SELECT * FROM "+quoteIdent(table))
}

// LoadQuery runs an ad-hoc query and returns its result set as a table
func (r *observationRepository) LoadQuery(ctx context.Context, query string, args ...interface{}) (*models.Table, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &models.ValidationError{Field: "query", Message: "query must not be empty"}
	}
	return r.load(ctx, "load_query", r.db.Rebind(query), args...)
}

func (r *observationRepository) load(ctx context.Context, queryType, query string, args ...interface{}) (*models.Table, error) {
	timer := time.Now()

	rows, err := r.db.QueryContext(ctx, queryType, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	cells := make([][]string, len(names))
	count := 0
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", count, err)
		}
		for i, v := range values {
			cells[i] = append(cells[i], cellString(v))
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	cols := make([]models.Column, len(names))
	for i, name := range names {
		if cells[i] == nil {
			cells[i] = []string{}
		}
		cols[i] = models.InferColumn(name, cells[i])
	}

	table, err := models.NewTable(cols, nil)
	if err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "[REPO_LOAD] Observation table loaded", logging.Fields{
		"query_type":  queryType,
		"rows":        table.Len(),
		"columns":     len(names),
		"duration_ms": time.Since(timer).Milliseconds(),
	})

	return table, nil
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// TableExists reports whether table is present in the store
func (r *observationRepository) TableExists(ctx context.Context, table string) (bool, error) {
	if err := ValidateTableName(table); err != nil {
		return false, err
	}

	schema, name := "", table
	if i := strings.IndexByte(table, '.'); i >= 0 {
		schema, name = table[:i], table[i+1:]
	}

	var query string
	var args []interface{}
	switch r.db.Driver() {
	case database.DriverSQLite:
		query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`
		args = []interface{}{name}
	default:
		query = `SELECT table_name FROM information_schema.tables WHERE table_name = ?`
		args = []interface{}{name}
		if schema != "" {
			query += ` AND table_schema = ?`
			args = append(args, schema)
		}
	}

	rows, err := r.db.QueryContext(ctx, "table_exists", r.db.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to check table: %w", err)
	}
	defer rows.Close()

	exists := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to check table: %w", err)
	}
	return exists, nil
}

// CreateTable creates table with one column per column of t when it does
// not exist yet. Numeric columns become DOUBLE PRECISION, the rest TEXT.
func (r *observationRepository) CreateTable(ctx context.Context, table string, t *models.Table) error {
	if err := ValidateTableName(table); err != nil {
		return err
	}

	defs := make([]string, 0, len(t.ColumnNames())+1)
	for _, c := range insertColumns(t) {
		sqlType := "TEXT"
		if c.kind == models.KindNumeric {
			sqlType = "DOUBLE PRECISION"
		}
		defs = append(defs, quoteColumn(c.name)+" "+sqlType)
	}
	if len(defs) == 0 {
		return &models.ValidationError{Field: "table", Value: table, Message: "no columns to create"}
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quoteIdent(table), strings.Join(defs, ",\n\t"))
	if _, err := r.db.ExecContext(ctx, "create_table", query); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	r.logger.Info(ctx, "[REPO_CREATE_TABLE] Table ready", logging.Fields{
		"table":   table,
		"columns": len(defs),
	})
	return nil
}

type insertColumn struct {
	name string
	kind models.ColumnKind
}

func insertColumns(t *models.Table) []insertColumn {
	out := []insertColumn{}
	if t.HasTimes() {
		out = append(out, insertColumn{name: models.DatetimeColumn, kind: models.KindText})
	}
	for _, c := range t.Columns() {
		out = append(out, insertColumn{name: c.Name, kind: c.Kind})
	}
	return out
}

// InsertRows inserts rows [from, to) of t in a single transaction. Missing
// cells are stored as NULL.
func (r *observationRepository) InsertRows(ctx context.Context, table string, t *models.Table, from, to int) error {
	if err := ValidateTableName(table); err != nil {
		return err
	}
	if from < 0 || to > t.Len() || from > to {
		return &models.ValidationError{Field: "rows", Value: fmt.Sprintf("%d:%d", from, to), Message: "row range out of bounds"}
	}
	if from == to {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"table":       table,
			"count":       to - from,
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	cols := insertColumns(t)
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteColumn(c.name)
		marks[i] = "?"
	}
	query := r.db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(names, ", "), strings.Join(marks, ", ")))

	// Begin transaction
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	columns := t.Columns()
	times := t.Times()
	args := make([]interface{}, len(cols))
	for row := from; row < to; row++ {
		i := 0
		if times != nil {
			args[i] = nil
			if !times[row].IsZero() {
				args[i] = times[row].Format("2006-01-02 15:04:05")
			}
			i++
		}
		for _, c := range columns {
			args[i] = cellValue(c, row)
			i++
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			r.metrics.RecordDBError("insert_error")
			return fmt.Errorf("failed to insert row %d: %w", row, err)
		}
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.RecordIngestedBatch(to - from)
	return nil
}

func cellValue(c models.Column, row int) interface{} {
	if c.IsMissing(row) {
		return nil
	}
	if c.Kind == models.KindText {
		return c.Texts[row]
	}
	return c.Floats[row]
}

// HealthCheck performs a repository health check
func (r *observationRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
