package validator

import (
	"bytes"
	"encoding/json"

	"github.com/evanschultz/daylog/internal/domain"
)

// ValidateDocument validates a JSON document holding an array of days.
// A non-array object root is reported once and then salvaged as a single
// day for the per-day checks; no further structural issues are added.
func (v *Validator) ValidateDocument(raw []byte) *domain.IssueSet {
	set := domain.NewIssueSet()
	raw = bytes.TrimSpace(raw)

	if !json.Valid(raw) {
		set.Add(domain.NewIssue(domain.KindStructural, "", 0, "document is not valid JSON"))
		return set
	}

	var elements []json.RawMessage
	structural := true
	if err := json.Unmarshal(raw, &elements); err != nil {
		set.Add(domain.NewIssue(domain.KindStructural, "", 0, "document root must be an array of days"))
		var probe map[string]json.RawMessage
		if json.Unmarshal(raw, &probe) != nil {
			return set
		}
		elements = []json.RawMessage{raw}
		structural = false
	}

	days := make([]domain.Day, 0, len(elements))
	for i, element := range elements {
		day, issue, ok := decodeDay(i, element)
		if !ok {
			if structural {
				set.Add(issue)
			}
			continue
		}
		days = append(days, day)
	}
	set.Merge(v.run(days, structural))
	return set
}

func decodeDay(index int, element json.RawMessage) (domain.Day, domain.Issue, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(element, &fields); err != nil {
		return domain.Day{}, domain.NewIssue(domain.KindStructural, "", 0, "day[%d] must be an object", index), false
	}
	var date string
	if rawDate, ok := fields["date"]; !ok || json.Unmarshal(rawDate, &date) != nil || date == "" {
		return domain.Day{}, domain.NewIssue(domain.KindStructural, "", 0, "day[%d] is missing a date", index), false
	}
	var day domain.Day
	if err := json.Unmarshal(element, &day); err != nil {
		return domain.Day{}, domain.NewIssue(domain.KindStructural, "", 0, "day[%d] (%s) cannot be decoded: %v", index, date, err), false
	}
	return day, domain.Issue{}, true
}
