package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/evanschultz/daylog/internal/domain"
	"github.com/evanschultz/daylog/internal/mapper"
	"github.com/evanschultz/daylog/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeState is the committed content of fakeRepo.
type fakeState struct {
	projects []domain.ProjectRow
	batches  []domain.ImportBatch
	days     map[string]domain.DayRecord
	records  []domain.TimeRecord
	nextID   int64
}

func (s fakeState) clone() fakeState {
	return fakeState{
		projects: slices.Clone(s.projects),
		batches:  slices.Clone(s.batches),
		days:     maps.Clone(s.days),
		records:  slices.Clone(s.records),
		nextID:   s.nextID,
	}
}

type fakeRepo struct {
	state        fakeState
	failRecordAt int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{state: fakeState{days: map[string]domain.DayRecord{}}}
}

func (r *fakeRepo) WithinTx(ctx context.Context, fn func(ImportTx) error) error {
	tx := &fakeTx{repo: r, state: r.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

func (r *fakeRepo) ListProjects(context.Context) ([]domain.ProjectRow, error) {
	return slices.Clone(r.state.projects), nil
}

func (r *fakeRepo) DeleteDateRange(_ context.Context, from, to string) (domain.PurgeResult, error) {
	var res domain.PurgeResult
	for date := range r.state.days {
		if date >= from && date <= to {
			delete(r.state.days, date)
			res.Days++
		}
	}
	kept := r.state.records[:0]
	for _, rec := range r.state.records {
		if rec.Date >= from && rec.Date <= to {
			res.Records++
			continue
		}
		kept = append(kept, rec)
	}
	r.state.records = kept
	return res, nil
}

func (r *fakeRepo) ProjectTotals(context.Context, string, string) ([]domain.ProjectTotal, error) {
	return nil, nil
}

type fakeTx struct {
	repo  *fakeRepo
	state fakeState
}

func (tx *fakeTx) ListProjects(context.Context) ([]domain.ProjectRow, error) {
	return slices.Clone(tx.state.projects), nil
}

func (tx *fakeTx) InsertProject(_ context.Context, name string, parentID *int64) (int64, error) {
	tx.state.nextID++
	tx.state.projects = append(tx.state.projects, domain.ProjectRow{ID: tx.state.nextID, Name: name, ParentID: parentID})
	return tx.state.nextID, nil
}

func (tx *fakeTx) InsertBatch(_ context.Context, b domain.ImportBatch) error {
	tx.state.batches = append(tx.state.batches, b)
	return nil
}

func (tx *fakeTx) InsertDay(_ context.Context, d domain.DayRecord) error {
	if _, ok := tx.state.days[d.Date]; ok {
		return errors.New("duplicate day")
	}
	tx.state.days[d.Date] = d
	return nil
}

func (tx *fakeTx) InsertTimeRecord(_ context.Context, rec domain.TimeRecord) error {
	if tx.repo.failRecordAt > 0 && len(tx.state.records)+1 == tx.repo.failRecordAt {
		return errors.New("disk full")
	}
	tx.state.records = append(tx.state.records, rec)
	return nil
}

func testServiceConfig() ServiceConfig {
	return ServiceConfig{
		Mapping: mapper.Table{
			Keywords: map[string]string{
				"study":           "study",
				"exercise-cardio": "exercise_cardio",
				"shower":          "routine_grooming",
			},
			Fallback: "unclassified",
			Rules: []mapper.Rule{
				{Parent: "sleep", Bucket: domain.BucketSleep},
				{Parent: "exercise", Children: []string{"cardio"}, Bucket: domain.BucketCardio},
			},
		},
		Validation: validator.Options{DateContinuity: validator.ContinuityMonth},
	}
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	svc, err := NewService(repo, func() string {
		n++
		return fmt.Sprintf("batch-%d", n)
	}, func() time.Time { return now }, testServiceConfig())
	require.NoError(t, err)
	return svc
}

const januaryLog = `20240104
Getup:06:30
Status:true
0800study
23:30 shower

20240105
Getup:07:00
Sleep:false
08:00 study
12:00 exercise-cardio // intervals
`

func TestIngestReconcilesAndMaps(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	batch, err := svc.Ingest(context.Background(), []Source{TextSource("jan.log", januaryLog)})
	require.NoError(t, err)
	require.Len(t, batch.Days, 2)
	assert.False(t, batch.Issues.HasErrors(), "issues: %v", batch.Issues.Sorted())

	cur := batch.Days[1]
	require.Len(t, cur.Activities, 3)
	assert.Equal(t, "sleep_night", cur.Activities[0].ProjectPath)
	assert.Equal(t, 27000, cur.Activities[0].DurationSeconds)
	assert.True(t, cur.HasSleepActivity)
	assert.Equal(t, 4*3600, cur.Stats.Get(domain.BucketCardio))
	assert.Equal(t, "intervals", cur.Activities[2].Remark)
}

func TestIngestMergesSourcesByDate(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	later := "20240105\nGetup:07:00\n08:00 study\n12:00 exercise-cardio\n"
	earlier := "20240104\nGetup:06:30\n08:00 study\n23:30 shower\n"
	batch, err := svc.Ingest(context.Background(), []Source{
		TextSource("b.log", later),
		TextSource("a.log", earlier),
	})
	require.NoError(t, err)
	require.Len(t, batch.Days, 2)
	assert.Equal(t, "2024-01-04", batch.Days[0].Date)
	assert.Equal(t, "2024-01-05", batch.Days[1].Date)
	assert.True(t, batch.Days[1].HasSleepActivity)
}

func TestIngestReportsMissingDate(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	text := ""
	for _, d := range []string{"20240101", "20240102", "20240103", "20240105"} {
		text += d + "\nGetup:07:00\n08:00 study\n09:00 shower\n"
	}
	batch, err := svc.Ingest(context.Background(), []Source{TextSource("jan.log", text)})
	require.NoError(t, err)
	require.Equal(t, 1, batch.Issues.Count(domain.KindDateDiscontinuity))
	for _, issue := range batch.Issues.Sorted() {
		if issue.Kind == domain.KindDateDiscontinuity {
			assert.Contains(t, issue.Message, "2024-01-04")
		}
	}
}

func TestIngestOpenFailureIsFatal(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	_, err := svc.Ingest(context.Background(), []Source{FileSource(t.TempDir() + "/missing.log")})
	require.Error(t, err)
}

func TestImportWritesBatch(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	batch, err := svc.Ingest(context.Background(), []Source{TextSource("jan.log", januaryLog)})
	require.NoError(t, err)
	res, err := svc.Import(context.Background(), batch, ImportPolicy{})
	require.NoError(t, err)

	assert.Equal(t, "batch-1", res.Batch.ID)
	assert.Equal(t, 2, res.Batch.DayCount)
	assert.Equal(t, 5, res.Batch.RecordCount)
	assert.Len(t, repo.state.days, 2)
	assert.Len(t, repo.state.records, 5)
	assert.Equal(t, "batch-1", repo.state.days["2024-01-05"].BatchID)
	// study, routine, routine_grooming, sleep, sleep_night, exercise, exercise_cardio
	assert.Equal(t, 7, res.ProjectsInserted)
}

func TestImportRollsBackOnRecordFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.failRecordAt = 3
	svc := newTestService(t, repo)

	batch, err := svc.Ingest(context.Background(), []Source{TextSource("jan.log", januaryLog)})
	require.NoError(t, err)
	_, err = svc.Import(context.Background(), batch, ImportPolicy{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Empty(t, repo.state.days)
	assert.Empty(t, repo.state.records)
	assert.Empty(t, repo.state.projects)
	assert.Empty(t, repo.state.batches)
}

func TestImportPolicy(t *testing.T) {
	warnings := domain.NewIssueSet(domain.NewWarning(domain.KindStructural, "a", 1, "x"))
	errs := domain.NewIssueSet(domain.NewIssue(domain.KindStructural, "a", 1, "x"))

	cases := []struct {
		name   string
		policy ImportPolicy
		issues *domain.IssueSet
		want   bool
	}{
		{"clean", ImportPolicy{}, domain.NewIssueSet(), false},
		{"errors block", ImportPolicy{}, errs, true},
		{"force", ImportPolicy{Force: true}, errs, false},
		{"warnings pass", ImportPolicy{}, warnings, false},
		{"warnings block", ImportPolicy{BlockOnWarnings: true}, warnings, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.policy.Blocks(tc.issues))
		})
	}
}

func TestImportBlockedAndEmpty(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	_, err := svc.Import(context.Background(), Batch{Issues: domain.NewIssueSet()}, ImportPolicy{})
	require.ErrorIs(t, err, ErrEmptyBatch)

	batch := Batch{
		Days:   []domain.Day{*domain.NewDay("2024-01-01", "a", 1)},
		Issues: domain.NewIssueSet(domain.NewIssue(domain.KindTooFewActivities, "a", 1, "too few")),
	}
	_, err = svc.Import(context.Background(), batch, ImportPolicy{})
	require.ErrorIs(t, err, ErrImportBlocked)
	assert.Empty(t, repo.state.batches)
}

func TestPurgeAndTotalsValidateRange(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	_, err := svc.Purge(context.Background(), "2024-02-01", "2024-01-01")
	require.ErrorIs(t, err, ErrInvalidDateRange)
	_, err = svc.Totals(context.Background(), "nope", "2024-01-01")
	require.ErrorIs(t, err, ErrInvalidDateRange)

	batch, err := svc.Ingest(context.Background(), []Source{TextSource("jan.log", januaryLog)})
	require.NoError(t, err)
	_, err = svc.Import(context.Background(), batch, ImportPolicy{})
	require.NoError(t, err)

	res, err := svc.Purge(context.Background(), "20240105", "20240131")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Days)
	assert.Equal(t, int64(3), res.Records)
	assert.Len(t, repo.state.days, 1)
}

func TestNewServiceRejectsInvalidMapping(t *testing.T) {
	_, err := NewService(newFakeRepo(), nil, nil, ServiceConfig{})
	require.ErrorIs(t, err, mapper.ErrInvalidTable)
}
