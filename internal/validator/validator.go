// Package validator checks mapped days for structural, continuity and
// business-rule problems and collects every issue it finds.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evanschultz/daylog/internal/domain"
)

// minActivities is the fewest activities a day may hold.
const minActivities = 2

// ContinuityMode selects the date-continuity granularity.
type ContinuityMode string

// ContinuityMode values.
const (
	ContinuityNone  ContinuityMode = "none"
	ContinuityMonth ContinuityMode = "month"
	ContinuityBatch ContinuityMode = "batch"
)

// ParseContinuityMode validates a configured continuity mode.
func ParseContinuityMode(raw string) (ContinuityMode, error) {
	switch mode := ContinuityMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "", ContinuityNone:
		return ContinuityNone, nil
	case ContinuityMonth, ContinuityBatch:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown date continuity mode %q", raw)
	}
}

// Options configures a Validator.
type Options struct {
	DateContinuity ContinuityMode
	// Tokens, when set, restricts project path segments to known categories.
	Tokens map[string]struct{}
}

// Validator runs the validation stages over a batch.
type Validator struct {
	opts Options
}

// New constructs a validator.
func New(opts Options) *Validator {
	if opts.DateContinuity == "" {
		opts.DateContinuity = ContinuityNone
	}
	return &Validator{opts: opts}
}

// Validate checks a date-ordered batch and returns every issue found.
func (v *Validator) Validate(days []domain.Day) *domain.IssueSet {
	return v.run(days, true)
}

func (v *Validator) run(days []domain.Day, structural bool) *domain.IssueSet {
	set := domain.NewIssueSet()
	if structural {
		set.Add(v.structural(days)...)
	}
	set.Add(v.dateContinuity(days)...)
	for _, day := range days {
		set.Add(activityCount(day)...)
		set.Add(timeContinuity(day)...)
		set.Add(businessRules(day)...)
	}
	return set
}

func (v *Validator) structural(days []domain.Day) []domain.Issue {
	out := []domain.Issue{}
	seen := map[string]int{}
	for _, day := range days {
		if _, err := day.Time(); err != nil {
			out = append(out, domain.NewIssue(domain.KindStructural, day.Source, day.Line, "day has invalid date %q", day.Date))
		} else if firstLine, dup := seen[day.Date]; dup {
			out = append(out, domain.NewIssue(domain.KindStructural, day.Source, day.Line,
				"date %s appears more than once (first at line %d)", day.Date, firstLine))
		} else {
			seen[day.Date] = day.Line
		}
		for _, a := range day.Activities {
			if err := domain.ValidatePath(a.ProjectPath, v.opts.Tokens); err != nil {
				out = append(out, domain.NewIssue(domain.KindStructural, day.Source, a.Line, "%s on %s: %v", activityLabel(a), day.Date, err))
			}
			switch {
			case a.DurationSeconds < 0:
				out = append(out, domain.NewIssue(domain.KindStructural, day.Source, a.Line,
					"%s on %s has negative duration %ds", activityLabel(a), day.Date, a.DurationSeconds))
			case a.DurationSeconds == 0:
				out = append(out, domain.NewWarning(domain.KindStructural, day.Source, a.Line,
					"%s on %s has zero duration", activityLabel(a), day.Date))
			}
		}
	}
	return out
}

// dateContinuity reports each calendar date missing between the first and
// last day of the batch, or of each month in month mode.
func (v *Validator) dateContinuity(days []domain.Day) []domain.Issue {
	if v.opts.DateContinuity == ContinuityNone {
		return nil
	}
	present := map[string]struct{}{}
	groups := map[string][]time.Time{}
	for _, day := range days {
		t, err := day.Time()
		if err != nil {
			continue
		}
		key := domain.FormatDate(t)
		if _, dup := present[key]; dup {
			continue
		}
		present[key] = struct{}{}
		group := "batch"
		if v.opts.DateContinuity == ContinuityMonth {
			group = t.Format("2006-01")
		}
		groups[group] = append(groups[group], t)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []domain.Issue{}
	for _, k := range keys {
		dates := groups[k]
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		for d := dates[0]; !d.After(dates[len(dates)-1]); d = d.AddDate(0, 0, 1) {
			if _, ok := present[domain.FormatDate(d)]; !ok {
				out = append(out, domain.NewIssue(domain.KindDateDiscontinuity, "", 0, "missing date %s", domain.FormatDate(d)))
			}
		}
	}
	return out
}

func activityCount(day domain.Day) []domain.Issue {
	if len(day.Activities) >= minActivities {
		return nil
	}
	return []domain.Issue{domain.NewIssue(domain.KindTooFewActivities, day.Source, day.Line,
		"day %s has %d activities, at least %d required", day.Date, len(day.Activities), minActivities)}
}

// timeContinuity reports the first gap or overlap between consecutive activities.
func timeContinuity(day domain.Day) []domain.Issue {
	for i := 0; i+1 < len(day.Activities); i++ {
		cur, next := day.Activities[i], day.Activities[i+1]
		if cur.EndTime != next.StartTime {
			return []domain.Issue{domain.NewIssue(domain.KindTimeDiscontinuity, day.Source, next.Line,
				"day %s: activity ending %s is followed by one starting %s", day.Date, cur.EndTime, next.StartTime)}
		}
	}
	return nil
}

func businessRules(day domain.Day) []domain.Issue {
	if !day.EndsInSleep {
		return nil
	}
	if n := len(day.Activities); n > 0 && day.Activities[n-1].TopSegment() == "sleep" {
		return nil
	}
	return []domain.Issue{domain.NewIssue(domain.KindBusinessRuleViolation, day.Source, day.Line,
		"day %s is marked as ending in sleep but its last activity is not sleep", day.Date)}
}

func activityLabel(a domain.Activity) string {
	return fmt.Sprintf("activity %s-%s", a.StartTime, a.EndTime)
}
