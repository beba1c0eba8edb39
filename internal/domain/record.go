package domain

import "time"

// DayRecord is the flattened day row handed to storage.
type DayRecord struct {
	Date        string
	Year        int
	Month       int
	Status      bool
	EndsInSleep bool
	Remark      string
	Getup       string
	Exercise    bool
	Study       bool
	Stats       Stats
	BatchID     string
}

// TimeRecord is the flattened activity row handed to storage.
type TimeRecord struct {
	LogicalID      int64
	Date           string
	Start          string
	End            string
	StartTimestamp int64
	EndTimestamp   int64
	ProjectID      int64
	Duration       int
	Remark         string
}

// NewDayRecord projects a day into its storage row.
func NewDayRecord(day Day, batchID string) (DayRecord, error) {
	t, err := day.Time()
	if err != nil {
		return DayRecord{}, err
	}
	return DayRecord{
		Date:        FormatDate(t),
		Year:        t.Year(),
		Month:       int(t.Month()),
		Status:      day.Status,
		EndsInSleep: day.EndsInSleep,
		Remark:      day.Remark(),
		Getup:       day.Getup,
		Exercise:    day.HasExerciseActivity,
		Study:       day.HasStudyActivity,
		Stats:       day.Stats,
		BatchID:     batchID,
	}, nil
}

// NewTimeRecord projects one activity of a day into its storage row.
func NewTimeRecord(date string, a Activity, projectID int64) TimeRecord {
	return TimeRecord{
		LogicalID:      a.LogicalID,
		Date:           date,
		Start:          a.StartTime,
		End:            a.EndTime,
		StartTimestamp: a.StartTimestamp,
		EndTimestamp:   a.EndTimestamp,
		ProjectID:      projectID,
		Duration:       a.DurationSeconds,
		Remark:         a.Remark,
	}
}

// ImportBatch describes one committed import.
type ImportBatch struct {
	ID          string
	ImportedAt  time.Time
	DayCount    int
	RecordCount int
}

// PurgeResult counts the rows removed for a date range.
type PurgeResult struct {
	Days    int64
	Records int64
	Batches int64
}

// ProjectTotal is the rolled-up duration of one top-level project.
type ProjectTotal struct {
	Project string
	Seconds int64
	Records int
}
