package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evanschultz/daylog/internal/domain"
	"github.com/evanschultz/daylog/internal/mapper"
	"github.com/evanschultz/daylog/internal/parser"
	"github.com/evanschultz/daylog/internal/reconcile"
	"github.com/evanschultz/daylog/internal/validator"
)

// IDGenerator returns unique identifiers for new import batches.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	Parser     parser.Options
	Mapping    mapper.Table
	Validation validator.Options
	// MaxParallel bounds concurrent source parsing. Zero means one per source.
	MaxParallel int
	Logger      Logger
}

// Service runs the ingest pipeline and imports its result.
type Service struct {
	repo        Repository
	idGen       IDGenerator
	clock       Clock
	parser      *parser.Parser
	mapper      *mapper.Mapper
	validator   *validator.Validator
	maxParallel int
	log         Logger
}

// NewService constructs a service. It fails when the mapping table is invalid.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) (*Service, error) {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	m, err := mapper.New(cfg.Mapping)
	if err != nil {
		return nil, fmt.Errorf("build mapper: %w", err)
	}
	vopts := cfg.Validation
	if vopts.Tokens == nil {
		vopts.Tokens = m.Tokens()
	}

	return &Service{
		repo:        repo,
		idGen:       idGen,
		clock:       clock,
		parser:      parser.New(cfg.Parser),
		mapper:      m,
		validator:   validator.New(vopts),
		maxParallel: cfg.MaxParallel,
		log:         cfg.Logger,
	}, nil
}

// Source is one named input log.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource reads a log from disk.
func FileSource(path string) Source {
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// TextSource wraps in-memory log text.
func TextSource(name, text string) Source {
	return Source{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(text)), nil },
	}
}

// Batch is the validated output of one ingest run.
type Batch struct {
	Days   []domain.Day
	Issues *domain.IssueSet
}

// Ingest parses every source, merges the days by date, reconciles, maps and
// validates them. Read failures are fatal; everything else is an issue.
func (s *Service) Ingest(ctx context.Context, sources []Source) (Batch, error) {
	results := make([]parser.Result, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	if s.maxParallel > 0 {
		g.SetLimit(s.maxParallel)
	}
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rc, err := src.Open()
			if err != nil {
				return fmt.Errorf("open source %s: %w", src.Name, err)
			}
			defer rc.Close()
			res, err := s.parser.Parse(src.Name, rc)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}

	issues := domain.NewIssueSet()
	var days []*domain.Day
	for i, res := range results {
		s.log.Debug("parsed source", "source", sources[i].Name, "days", len(res.Days), "issues", len(res.Issues))
		days = append(days, res.Days...)
		issues.Add(res.Issues...)
	}
	slices.SortStableFunc(days, func(a, b *domain.Day) int {
		return strings.Compare(normalizedDate(a.Date), normalizedDate(b.Date))
	})

	outcomes := reconcile.ReconcileAll(days)
	synthesized := 0
	for _, o := range outcomes {
		if o == reconcile.OutcomeSleepSynthesized {
			synthesized++
		}
	}
	issues.Add(s.mapper.MapAll(days)...)

	flat := make([]domain.Day, len(days))
	for i, d := range days {
		flat[i] = *d
	}
	issues.Merge(s.validator.Validate(flat))

	s.log.Info("ingest complete",
		"sources", len(sources),
		"days", len(flat),
		"synthesized_sleep", synthesized,
		"issues", issues.Len(),
		"errors", issues.CountSeverity(domain.SeverityError),
	)
	return Batch{Days: flat, Issues: issues}, nil
}

// ValidateDocument validates a converted JSON document.
func (s *Service) ValidateDocument(raw []byte) *domain.IssueSet {
	return s.validator.ValidateDocument(raw)
}

// Purge deletes stored days, records and orphaned batches in [from, to].
func (s *Service) Purge(ctx context.Context, from, to string) (domain.PurgeResult, error) {
	fromDate, toDate, err := normalizeRange(from, to)
	if err != nil {
		return domain.PurgeResult{}, err
	}
	res, err := s.repo.DeleteDateRange(ctx, fromDate, toDate)
	if err != nil {
		return domain.PurgeResult{}, fmt.Errorf("purge %s..%s: %w", fromDate, toDate, err)
	}
	s.log.Info("purged range", "from", fromDate, "to", toDate, "days", res.Days, "records", res.Records, "batches", res.Batches)
	return res, nil
}

// Totals returns durations in [from, to] rolled up to top-level projects.
func (s *Service) Totals(ctx context.Context, from, to string) ([]domain.ProjectTotal, error) {
	fromDate, toDate, err := normalizeRange(from, to)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.ProjectTotals(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("project totals %s..%s: %w", fromDate, toDate, err)
	}
	return totals, nil
}

// normalizeRange parses both bounds and returns them as YYYY-MM-DD.
func normalizeRange(from, to string) (string, string, error) {
	f, err := domain.ParseDate(from)
	if err != nil {
		return "", "", fmt.Errorf("%w: from: %w", ErrInvalidDateRange, err)
	}
	t, err := domain.ParseDate(to)
	if err != nil {
		return "", "", fmt.Errorf("%w: to: %w", ErrInvalidDateRange, err)
	}
	if t.Before(f) {
		return "", "", fmt.Errorf("%w: %s is after %s", ErrInvalidDateRange, domain.FormatDate(f), domain.FormatDate(t))
	}
	return domain.FormatDate(f), domain.FormatDate(t), nil
}

// normalizedDate sorts unparseable dates by their raw text.
func normalizedDate(raw string) string {
	t, err := domain.ParseDate(raw)
	if err != nil {
		return raw
	}
	return domain.FormatDate(t)
}
