package app

import (
	"context"

	"github.com/evanschultz/daylog/internal/domain"
)

// Repository is the embedded relational store used by the service.
type Repository interface {
	// WithinTx runs fn in one transaction, committing only when fn returns nil.
	WithinTx(context.Context, func(ImportTx) error) error
	ListProjects(context.Context) ([]domain.ProjectRow, error)
	DeleteDateRange(context.Context, string, string) (domain.PurgeResult, error)
	ProjectTotals(context.Context, string, string) ([]domain.ProjectTotal, error)
}

// ProjectWriter persists new hierarchy rows and returns their identifiers.
type ProjectWriter interface {
	InsertProject(ctx context.Context, name string, parentID *int64) (int64, error)
}

// ImportTx is the write surface available inside an import transaction.
type ImportTx interface {
	ProjectWriter
	ListProjects(context.Context) ([]domain.ProjectRow, error)
	InsertBatch(context.Context, domain.ImportBatch) error
	InsertDay(context.Context, domain.DayRecord) error
	InsertTimeRecord(context.Context, domain.TimeRecord) error
}

// Logger receives pipeline diagnostics. Implementations must be safe for
// use from the goroutine running the pipeline.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
}

// nopLogger discards diagnostics.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
