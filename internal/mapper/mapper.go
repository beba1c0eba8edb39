// Package mapper resolves raw event descriptions into categorized activities
// and derives per-day duration statistics.
package mapper

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/evanschultz/daylog/internal/domain"
	"github.com/evanschultz/daylog/internal/reconcile"
)

// Top-level categories that drive the derived day flags.
const (
	topSleep    = "sleep"
	topExercise = "exercise"
	topStudy    = "study"
)

// Rule adds an activity's duration to Bucket when its top segment equals
// Parent and, if Children is set, its second segment is one of Children.
type Rule struct {
	Parent   string
	Children []string
	Bucket   domain.Bucket
}

// Table is the configured keyword and stats rule table.
type Table struct {
	Keywords map[string]string
	Fallback string
	Rules    []Rule
}

// Mapper applies a Table to days.
type Mapper struct {
	keywords map[string]string
	fallback string
	rules    []compiledRule
	tokens   map[string]struct{}
	// paths holds every configured path and each of its ancestors.
	paths map[string]struct{}
}

type compiledRule struct {
	parent   string
	children map[string]struct{}
	bucket   domain.Bucket
}

// New validates the table and builds the lookup structures once.
func New(t Table) (*Mapper, error) {
	fallback := strings.TrimSpace(t.Fallback)
	if fallback == "" {
		return nil, fmt.Errorf("%w: fallback category is required", ErrInvalidTable)
	}
	if len(t.Keywords) == 0 {
		return nil, fmt.Errorf("%w: keyword table is empty", ErrInvalidTable)
	}
	m := &Mapper{
		keywords: make(map[string]string, len(t.Keywords)),
		fallback: fallback,
		tokens:   map[string]struct{}{},
		paths:    map[string]struct{}{},
	}
	for _, path := range []string{fallback, reconcile.SleepPath} {
		if err := m.addTokens(path); err != nil {
			return nil, err
		}
	}
	for keyword, path := range t.Keywords {
		key := normalize(keyword)
		if key == "" {
			return nil, fmt.Errorf("%w: empty keyword", ErrInvalidTable)
		}
		path = strings.TrimSpace(path)
		if err := m.addTokens(path); err != nil {
			return nil, fmt.Errorf("%w: keyword %q: %v", ErrInvalidTable, keyword, err)
		}
		m.keywords[key] = path
	}

	seen := map[domain.Bucket]struct{}{}
	for i, r := range t.Rules {
		parent := strings.TrimSpace(r.Parent)
		if parent == "" {
			return nil, fmt.Errorf("%w: rules[%d].parent is required", ErrInvalidTable, i)
		}
		if _, err := domain.ParseBucket(string(r.Bucket)); err != nil {
			return nil, fmt.Errorf("%w: rules[%d]: %v", ErrInvalidTable, i, err)
		}
		if _, dup := seen[r.Bucket]; dup {
			return nil, fmt.Errorf("%w: rules[%d] targets bucket %q twice", ErrInvalidTable, i, r.Bucket)
		}
		seen[r.Bucket] = struct{}{}
		cr := compiledRule{parent: parent, bucket: r.Bucket}
		if len(r.Children) > 0 {
			cr.children = make(map[string]struct{}, len(r.Children))
			for _, child := range r.Children {
				cr.children[strings.TrimSpace(child)] = struct{}{}
			}
		}
		m.rules = append(m.rules, cr)
	}
	return m, nil
}

// Tokens returns a copy of the known category tokens.
func (m *Mapper) Tokens() map[string]struct{} {
	out := make(map[string]struct{}, len(m.tokens))
	for token := range m.tokens {
		out[token] = struct{}{}
	}
	return out
}

// Resolve maps a description to a project path. A description that is not a
// keyword still resolves when its tokens, in order, spell a configured path
// or one of its ancestors. ok is false when the fallback category was used.
func (m *Mapper) Resolve(description string) (path string, ok bool) {
	key := normalize(description)
	if path, found := m.keywords[key]; found {
		return path, true
	}
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	if len(parts) > 0 {
		joined := domain.JoinPath(parts...)
		if _, found := m.paths[joined]; found {
			return joined, true
		}
	}
	return m.fallback, false
}

// MapDay rebuilds the day's mapped activities from its raw events, keeping
// synthesized activities in front, then recomputes stats and flags.
func (m *Mapper) MapDay(day *domain.Day) []domain.Issue {
	issues := []domain.Issue{}
	activities := make([]domain.Activity, 0, len(day.RawEvents)+1)
	for _, a := range day.Activities {
		if a.Synthetic {
			activities = append(activities, a)
		}
	}

	var base int64
	if date, err := day.Time(); err == nil {
		base = date.Unix()
	}

	var prev domain.Clock
	haveStart := false
	if getup, err := domain.ParseClock(day.Getup); err == nil {
		prev = getup
		haveStart = true
	}
	cursor := base + int64(prev)

	for _, ev := range day.RawEvents {
		end, err := domain.ParseClock(ev.EndTime)
		if err != nil || ev.Malformed {
			// Unreadable times close the activity where it started.
			end = prev
		}
		if !haveStart {
			prev = end
			cursor = base + int64(end)
			haveStart = true
		}
		path, ok := m.Resolve(ev.Description)
		if !ok {
			issues = append(issues, domain.NewWarning(domain.KindBusinessRuleViolation, day.Source, ev.Line,
				"activity %q on %s is not mapped; filed under %q", ev.Description, day.Date, path))
		}
		duration := prev.Until(end)
		activities = append(activities, domain.Activity{
			Line:            ev.Line,
			StartTimestamp:  cursor,
			EndTimestamp:    cursor + int64(duration),
			StartTime:       prev.String(),
			EndTime:         end.String(),
			ProjectPath:     path,
			DurationSeconds: duration,
			Remark:          ev.Remark,
		})
		cursor += int64(duration)
		prev = end
	}

	day.Activities = activities
	day.Stats = m.stats(activities)
	for _, a := range activities {
		switch a.TopSegment() {
		case topSleep:
			day.HasSleepActivity = true
		case topExercise:
			day.HasExerciseActivity = true
		case topStudy:
			day.HasStudyActivity = true
		}
	}
	return issues
}

// MapAll maps every day in order and numbers activities across the batch.
func (m *Mapper) MapAll(days []*domain.Day) []domain.Issue {
	issues := []domain.Issue{}
	var id int64
	for _, day := range days {
		issues = append(issues, m.MapDay(day)...)
		for i := range day.Activities {
			id++
			day.Activities[i].LogicalID = id
		}
	}
	return issues
}

func (m *Mapper) stats(activities []domain.Activity) domain.Stats {
	var s domain.Stats
	for _, a := range activities {
		top, child := a.TopSegment(), domain.ChildSegment(a.ProjectPath)
		for _, r := range m.rules {
			if r.matches(top, child) {
				s.Add(r.bucket, a.DurationSeconds)
			}
		}
	}
	return s
}

func (r compiledRule) matches(top, child string) bool {
	if top != r.parent {
		return false
	}
	if r.children == nil {
		return true
	}
	_, ok := r.children[child]
	return ok
}

func (m *Mapper) addTokens(path string) error {
	if err := domain.ValidatePath(path, nil); err != nil {
		return err
	}
	segments := domain.SplitPath(path)
	for i, segment := range segments {
		m.tokens[segment] = struct{}{}
		m.paths[domain.JoinPath(segments[:i+1]...)] = struct{}{}
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
