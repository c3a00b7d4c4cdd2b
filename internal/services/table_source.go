package services

import (
	"context"

	"airquality-eda/internal/models"
	"airquality-eda/internal/repository"
)

// TableSource provides the raw observation table a snapshot is built from
type TableSource interface {
	Load(ctx context.Context) (*models.Table, error)
	Describe() string
}

// DatabaseSource loads a table, or the result of an ad-hoc query, from the
// tabular store
type DatabaseSource struct {
	repo  repository.ObservationRepository
	table string
	query string
}

// NewDatabaseSource creates a source reading table, or query when it is set
func NewDatabaseSource(repo repository.ObservationRepository, table, query string) *DatabaseSource {
	return &DatabaseSource{repo: repo, table: table, query: query}
}

// Load reads the configured table or query
func (s *DatabaseSource) Load(ctx context.Context) (*models.Table, error) {
	if s.query != "" {
		return s.repo.LoadQuery(ctx, s.query)
	}
	return s.repo.LoadTable(ctx, s.table)
}

// Describe names the source for logs and summaries
func (s *DatabaseSource) Describe() string {
	if s.query != "" {
		return "query"
	}
	return "table:" + s.table
}

// StaticSource serves a fixed, already loaded table
type StaticSource struct {
	Table *models.Table
	Name  string
}

// Load returns the wrapped table
func (s *StaticSource) Load(ctx context.Context) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Table == nil {
		return models.EmptyTable(), nil
	}
	return s.Table, nil
}

// Describe names the source for logs and summaries
func (s *StaticSource) Describe() string {
	if s.Name == "" {
		return "static"
	}
	return s.Name
}
