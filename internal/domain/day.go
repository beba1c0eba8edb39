package domain

import (
	"strings"
	"time"
)

// RawEvent is one recorded event line: the time it ended and what was done.
type RawEvent struct {
	Line        int    `json:"line,omitempty"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
	Remark      string `json:"remark,omitempty"`
	// Malformed marks an event whose time could not be parsed.
	Malformed   bool   `json:"malformed,omitempty"`
}

// Activity is one time-bounded unit of logged behavior with a resolved category.
type Activity struct {
	LogicalID       int64  `json:"logical_id"`
	Line            int    `json:"line,omitempty"`
	StartTimestamp  int64  `json:"start_timestamp"`
	EndTimestamp    int64  `json:"end_timestamp"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	ProjectPath     string `json:"project_path"`
	DurationSeconds int    `json:"duration_seconds"`
	Remark          string `json:"remark,omitempty"`
	Synthetic       bool   `json:"synthetic,omitempty"`
}

// TopSegment returns the first segment of the activity project path.
func (a Activity) TopSegment() string {
	return TopSegment(a.ProjectPath)
}

// Day accumulates everything recorded for one date during a batch.
type Day struct {
	Date                string     `json:"date"`
	Source              string     `json:"source,omitempty"`
	Line                int        `json:"line,omitempty"`
	Status              bool       `json:"status"`
	EndsInSleep         bool       `json:"ends_in_sleep"`
	Getup               string     `json:"getup_time"`
	GeneralRemarks      []string   `json:"general_remarks"`
	RawEvents           []RawEvent `json:"raw_events"`
	HasSleepActivity    bool       `json:"has_sleep_activity"`
	HasExerciseActivity bool       `json:"has_exercise_activity"`
	HasStudyActivity    bool       `json:"has_study_activity"`
	IsContinuation      bool       `json:"is_continuation"`
	Reconciled          bool       `json:"reconciled,omitempty"`
	Activities          []Activity `json:"activities"`
	Stats               Stats      `json:"generated_stats"`
}

// NewDay constructs an empty day for the given date.
func NewDay(date, source string, line int) *Day {
	return &Day{
		Date:           strings.TrimSpace(date),
		Source:         source,
		Line:           line,
		GeneralRemarks: []string{},
		RawEvents:      []RawEvent{},
		Activities:     []Activity{},
	}
}

// Time returns the day's date as midnight UTC.
func (d Day) Time() (time.Time, error) {
	return ParseDate(d.Date)
}

// LastEvent returns the final raw event of the day.
func (d Day) LastEvent() (RawEvent, bool) {
	if len(d.RawEvents) == 0 {
		return RawEvent{}, false
	}
	return d.RawEvents[len(d.RawEvents)-1], true
}

// Remark joins the general remarks into one stored remark.
func (d Day) Remark() string {
	return strings.Join(d.GeneralRemarks, "\n")
}
