// Package reconcile bridges adjacent days with the overnight sleep between them.
package reconcile

import (
	"github.com/evanschultz/daylog/internal/domain"
)

// SleepPath is the project path of the synthesized overnight activity.
const SleepPath = "sleep_night"

// Outcome reports what Reconcile did to the current day.
type Outcome int

// Outcome values.
const (
	OutcomeNone Outcome = iota
	OutcomeSleepSynthesized
	OutcomeGetupInherited
	OutcomeAlreadyReconciled
)

// String names the outcome for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeSleepSynthesized:
		return "sleep_synthesized"
	case OutcomeGetupInherited:
		return "getup_inherited"
	case OutcomeAlreadyReconciled:
		return "already_reconciled"
	default:
		return "none"
	}
}

// Reconcile mutates cur using the chronologically previous day prev.
// Running it again on an already reconciled day is a no-op.
func Reconcile(prev, cur *domain.Day) Outcome {
	if cur == nil {
		return OutcomeNone
	}
	if cur.Reconciled {
		return OutcomeAlreadyReconciled
	}
	if prev == nil {
		return OutcomeNone
	}
	last, ok := prev.LastEvent()
	if !ok {
		return OutcomeNone
	}
	cur.Reconciled = true

	if !prev.IsContinuation && cur.Getup != "" {
		cur.Activities = append([]domain.Activity{sleepActivity(*cur, last.EndTime)}, cur.Activities...)
		cur.HasSleepActivity = true
		return OutcomeSleepSynthesized
	}
	if cur.IsContinuation {
		cur.Getup = last.EndTime
		return OutcomeGetupInherited
	}
	return OutcomeNone
}

// ReconcileAll reconciles each adjacent pair of a date-ordered batch and
// returns the outcome for every day.
func ReconcileAll(days []*domain.Day) []Outcome {
	out := make([]Outcome, len(days))
	var prev *domain.Day
	for i, day := range days {
		out[i] = Reconcile(prev, day)
		prev = day
	}
	return out
}

// sleepActivity builds the overnight activity ending at the day's getup time.
func sleepActivity(cur domain.Day, start string) domain.Activity {
	startClock, _ := domain.ParseClock(start)
	endClock, _ := domain.ParseClock(cur.Getup)
	duration := startClock.Until(endClock)

	var endTS int64
	if date, err := cur.Time(); err == nil {
		endTS = date.Unix() + int64(endClock)
	}
	return domain.Activity{
		Line:            cur.Line,
		StartTimestamp:  endTS - int64(duration),
		EndTimestamp:    endTS,
		StartTime:       startClock.String(),
		EndTime:         endClock.String(),
		ProjectPath:     SleepPath,
		DurationSeconds: duration,
		Synthetic:       true,
	}
}
