package domain

import (
	"fmt"
	"sort"
)

// IssueKind classifies a validation or parse issue.
type IssueKind string

// IssueKind values.
const (
	KindStructural            IssueKind = "structural"
	KindDateDiscontinuity     IssueKind = "date_discontinuity"
	KindTimeDiscontinuity     IssueKind = "time_discontinuity"
	KindTooFewActivities      IssueKind = "too_few_activities"
	KindBusinessRuleViolation IssueKind = "business_rule_violation"
)

// Severity ranks how much an issue matters to the caller.
type Severity string

// Severity values.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in a batch. Line is 1-based; zero means no line applies.
type Issue struct {
	Source   string    `json:"source,omitempty"`
	Line     int       `json:"line,omitempty"`
	Message  string    `json:"message"`
	Kind     IssueKind `json:"kind"`
	Severity Severity  `json:"severity"`
}

// NewIssue builds an error-severity issue.
func NewIssue(kind IssueKind, source string, line int, format string, args ...any) Issue {
	return Issue{
		Source:   source,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
		Kind:     kind,
		Severity: SeverityError,
	}
}

// NewWarning builds a warning-severity issue.
func NewWarning(kind IssueKind, source string, line int, format string, args ...any) Issue {
	issue := NewIssue(kind, source, line, format, args...)
	issue.Severity = SeverityWarning
	return issue
}

// String renders the issue on one line.
func (i Issue) String() string {
	loc := i.Source
	if i.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, i.Line)
	}
	if loc == "" {
		return fmt.Sprintf("%s [%s] %s", i.Severity, i.Kind, i.Message)
	}
	return fmt.Sprintf("%s: %s [%s] %s", loc, i.Severity, i.Kind, i.Message)
}

// less orders issues by line number, then message, then the remaining fields.
func (i Issue) less(o Issue) bool {
	if i.Line != o.Line {
		return i.Line < o.Line
	}
	if i.Message != o.Message {
		return i.Message < o.Message
	}
	if i.Source != o.Source {
		return i.Source < o.Source
	}
	if i.Kind != o.Kind {
		return i.Kind < o.Kind
	}
	return i.Severity < o.Severity
}

type issueKey struct {
	source  string
	line    int
	kind    IssueKind
	message string
}

// IssueSet is a deduplicating collection of issues.
type IssueSet struct {
	items map[issueKey]Issue
}

// NewIssueSet constructs a set holding the given issues.
func NewIssueSet(issues ...Issue) *IssueSet {
	s := &IssueSet{items: map[issueKey]Issue{}}
	s.Add(issues...)
	return s
}

// Add inserts issues; an issue equal to one already present collapses into it.
// When duplicates disagree on severity the error severity wins.
func (s *IssueSet) Add(issues ...Issue) {
	if s.items == nil {
		s.items = map[issueKey]Issue{}
	}
	for _, issue := range issues {
		key := issueKey{source: issue.Source, line: issue.Line, kind: issue.Kind, message: issue.Message}
		if prev, ok := s.items[key]; ok && prev.Severity == SeverityError {
			continue
		}
		s.items[key] = issue
	}
}

// Merge adds every issue of other.
func (s *IssueSet) Merge(other *IssueSet) {
	if other == nil {
		return
	}
	for _, issue := range other.items {
		s.Add(issue)
	}
}

// Len returns the number of distinct issues.
func (s *IssueSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Sorted returns the issues in deterministic order.
func (s *IssueSet) Sorted() []Issue {
	if s == nil {
		return []Issue{}
	}
	out := make([]Issue, 0, len(s.items))
	for _, issue := range s.items {
		out = append(out, issue)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].less(out[b]) })
	return out
}

// Count returns how many issues have the given kind.
func (s *IssueSet) Count(kind IssueKind) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, issue := range s.items {
		if issue.Kind == kind {
			n++
		}
	}
	return n
}

// CountSeverity returns how many issues have the given severity.
func (s *IssueSet) CountSeverity(sev Severity) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, issue := range s.items {
		if issue.Severity == sev {
			n++
		}
	}
	return n
}

// HasErrors reports whether any error-severity issue is present.
func (s *IssueSet) HasErrors() bool {
	return s.CountSeverity(SeverityError) > 0
}
