// Package parser recovers per-day working records from raw daily log text.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/evanschultz/daylog/internal/domain"
)

// Marker prefixes recognized at the start of a line (case-insensitive).
const (
	markerDate   = "date:"
	markerStatus = "status:"
	markerSleep  = "sleep:"
	markerGetup  = "getup:"
	markerRemark = "remark:"
)

// remarkSeparator splits an event description from its trailing remark.
const remarkSeparator = "//"

var (
	bareDatePattern = regexp.MustCompile(`^(\d{8}|\d{4}-\d{2}-\d{2})$`)
	// A bare HHMM time must be followed by whitespace or a non-digit,
	// non-separator character so dates never read as events.
	eventPattern    = regexp.MustCompile(`^(\d{1,2}:\d{2}|\d{4})(?:\s+(.*)|([^\d\s:\-].*))?$`)
)

// Options controls parser reporting.
type Options struct {
	// Strict reports unrecognized lines as structural warnings instead of ignoring them.
	Strict bool
}

// Result is the output of one parse: days in file order plus non-fatal issues.
type Result struct {
	Days   []*domain.Day
	Issues []domain.Issue
}

// Parser turns raw log text into working days.
type Parser struct {
	opts Options
}

// New constructs a parser.
func New(opts Options) *Parser {
	return &Parser{opts: opts}
}

// ParseString parses an in-memory log.
func (p *Parser) ParseString(source, text string) Result {
	res, _ := p.Parse(source, strings.NewReader(text))
	return res
}

// Parse reads the log line by line. Only read failures are returned as errors.
func (p *Parser) Parse(source string, r io.Reader) (Result, error) {
	st := &state{source: source, opts: p.opts, res: Result{Days: []*domain.Day{}, Issues: []domain.Issue{}}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		st.line(lineNo, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return st.res, fmt.Errorf("read %s: %w", source, err)
	}
	st.finalize()
	return st.res, nil
}

// state is the per-parse accumulator.
type state struct {
	source string
	opts   Options
	cur    *domain.Day
	res    Result

	// getupLine is the line of the open day's Getup marker, zero when unseen.
	getupLine int
}

func (s *state) line(n int, raw string) {
	text := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if text == "" {
		return
	}
	lower := strings.ToLower(text)

	if bareDatePattern.MatchString(text) {
		s.openDay(n, text)
		return
	}
	if strings.HasPrefix(lower, markerDate) {
		s.openDay(n, strings.TrimSpace(text[len(markerDate):]))
		return
	}

	if s.cur == nil {
		s.warn(n, "line %q appears before any date marker", text)
		return
	}

	switch {
	case strings.HasPrefix(lower, markerStatus):
		s.cur.Status = s.flag(n, markerStatus, text[len(markerStatus):])
	case strings.HasPrefix(lower, markerSleep):
		s.cur.EndsInSleep = s.flag(n, markerSleep, text[len(markerSleep):])
	case strings.HasPrefix(lower, markerGetup):
		s.getup(n, strings.TrimSpace(text[len(markerGetup):]))
	case strings.HasPrefix(lower, markerRemark):
		if remark := strings.TrimSpace(text[len(markerRemark):]); remark != "" {
			s.cur.GeneralRemarks = append(s.cur.GeneralRemarks, remark)
		}
	default:
		if m := eventPattern.FindStringSubmatch(text); m != nil {
			s.event(n, m[1], m[2]+m[3])
			return
		}
		if s.opts.Strict {
			s.warn(n, "unrecognized line %q", text)
		}
	}
}

// openDay finalizes the open day and starts a new one.
func (s *state) openDay(n int, rawDate string) {
	s.finalize()
	date := rawDate
	if t, err := domain.ParseDate(rawDate); err == nil {
		date = domain.FormatDate(t)
	} else {
		s.warn(n, "invalid date marker %q", rawDate)
	}
	s.cur = domain.NewDay(date, s.source, n)
	s.getupLine = 0
}

// getup records the wake-up time. A repeated marker wins over the earlier one.
func (s *state) getup(n int, raw string) {
	if s.getupLine > 0 {
		s.warn(n, "duplicate getup marker for %s; line %d is overridden", s.cur.Date, s.getupLine)
	}
	s.getupLine = n
	if raw == "" {
		s.cur.Getup = ""
		return
	}
	c, _ := s.clock(n, raw)
	s.cur.Getup = c.String()
}

func (s *state) event(n int, rawTime, rest string) {
	description, remark, _ := strings.Cut(rest, remarkSeparator)
	description = strings.TrimSpace(description)
	if description == "" {
		s.warn(n, "event at %s has no description", rawTime)
	}
	end, ok := s.clock(n, rawTime)
	s.cur.RawEvents = append(s.cur.RawEvents, domain.RawEvent{
		Line:        n,
		EndTime:     end.String(),
		Description: description,
		Remark:      strings.TrimSpace(remark),
		Malformed:   !ok,
	})
}

// clock parses a time, collapsing malformed values to midnight.
func (s *state) clock(n int, raw string) (domain.Clock, bool) {
	c, err := domain.ParseClock(raw)
	if err != nil {
		s.warn(n, "malformed time %q treated as 00:00", raw)
		return 0, false
	}
	return c, true
}

func (s *state) flag(n int, marker, raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1":
		return true
	case "false", "no", "0", "":
		return false
	default:
		s.warn(n, "invalid %s value %q treated as false", strings.TrimSuffix(marker, ":"), strings.TrimSpace(raw))
		return false
	}
}

// finalize closes the open day.
func (s *state) finalize() {
	if s.cur == nil {
		return
	}
	s.cur.IsContinuation = s.cur.Getup == ""
	s.res.Days = append(s.res.Days, s.cur)
	s.cur = nil
	s.getupLine = 0
}

func (s *state) warn(n int, format string, args ...any) {
	s.res.Issues = append(s.res.Issues, domain.NewWarning(domain.KindStructural, s.source, n, format, args...))
}
