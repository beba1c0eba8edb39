package app

import (
	"context"
	"fmt"

	"github.com/evanschultz/daylog/internal/domain"
)

// ImportPolicy decides whether validation issues block an import.
type ImportPolicy struct {
	// Force imports even when error-severity issues are present.
	Force bool
	// BlockOnWarnings treats warnings as blocking unless Force is set.
	BlockOnWarnings bool
}

// Blocks reports whether issues prevent an import under this policy.
func (p ImportPolicy) Blocks(issues *domain.IssueSet) bool {
	if p.Force || issues == nil {
		return false
	}
	if issues.HasErrors() {
		return true
	}
	return p.BlockOnWarnings && issues.CountSeverity(domain.SeverityWarning) > 0
}

// ImportResult summarizes one committed import.
type ImportResult struct {
	Batch            domain.ImportBatch
	ProjectsInserted int
}

// Import writes a batch in one transaction: hierarchy rows, the batch row,
// day rows, then activity rows. Any failure rolls the whole batch back.
func (s *Service) Import(ctx context.Context, batch Batch, policy ImportPolicy) (ImportResult, error) {
	if len(batch.Days) == 0 {
		return ImportResult{}, ErrEmptyBatch
	}
	if policy.Blocks(batch.Issues) {
		return ImportResult{}, fmt.Errorf("%w: %d errors, %d warnings", ErrImportBlocked,
			batch.Issues.CountSeverity(domain.SeverityError), batch.Issues.CountSeverity(domain.SeverityWarning))
	}

	paths := make([]string, 0)
	records := 0
	for _, day := range batch.Days {
		for _, a := range day.Activities {
			paths = append(paths, a.ProjectPath)
			records++
		}
	}

	meta := domain.ImportBatch{
		ID:          s.idGen(),
		ImportedAt:  s.clock().UTC(),
		DayCount:    len(batch.Days),
		RecordCount: records,
	}
	var inserted int
	err := s.repo.WithinTx(ctx, func(tx ImportTx) error {
		rows, err := tx.ListProjects(ctx)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		resolver := NewProjectResolver(tx)
		if err := resolver.Load(rows); err != nil {
			return fmt.Errorf("load project hierarchy: %w", err)
		}
		ids, err := resolver.ResolveAll(ctx, paths)
		if err != nil {
			return fmt.Errorf("resolve projects: %w", err)
		}
		inserted = resolver.Inserted()

		if err := tx.InsertBatch(ctx, meta); err != nil {
			return fmt.Errorf("insert import batch %s: %w", meta.ID, err)
		}
		for _, day := range batch.Days {
			rec, err := domain.NewDayRecord(day, meta.ID)
			if err != nil {
				return fmt.Errorf("project day %s: %w", day.Date, err)
			}
			if err := tx.InsertDay(ctx, rec); err != nil {
				return fmt.Errorf("insert day %s: %w", rec.Date, err)
			}
		}
		for _, day := range batch.Days {
			for _, a := range day.Activities {
				id, ok := ids[a.ProjectPath]
				if !ok {
					return fmt.Errorf("%w: %q", ErrUnresolvedProject, a.ProjectPath)
				}
				rec := domain.NewTimeRecord(day.Date, a, id)
				if err := tx.InsertTimeRecord(ctx, rec); err != nil {
					return fmt.Errorf("insert time record %s %s-%s: %w", rec.Date, rec.Start, rec.End, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("import batch: %w", err)
	}

	s.log.Info("import committed",
		"batch", meta.ID,
		"days", meta.DayCount,
		"records", meta.RecordCount,
		"projects_inserted", inserted,
	)
	return ImportResult{Batch: meta, ProjectsInserted: inserted}, nil
}
