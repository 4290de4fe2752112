package models

import (
	"encoding/json"
	"fmt"
)

// ContentByStatus groups content by type, then by watch status. Values are replaced
// wholesale on refresh and never mutated after they are handed to readers.
type ContentByStatus map[ContentType]map[WatchStatus][]Content

// NewContentByStatus returns an aggregate with an empty list for every type and status, including none.
func NewContentByStatus() ContentByStatus {
	agg := make(ContentByStatus, 3)
	for _, t := range ContentTypes() {
		agg[t] = make(map[WatchStatus][]Content, 5)
		for _, s := range AllStatuses() {
			agg[t][s] = []Content{}
		}
	}
	return agg
}

// Add appends c under its own type and status s.
func (a ContentByStatus) Add(s WatchStatus, c Content) {
	byStatus, ok := a[c.Type()]
	if !ok {
		byStatus = make(map[WatchStatus][]Content)
		a[c.Type()] = byStatus
	}
	byStatus[s] = append(byStatus[s], c)
}

// Items returns the content tracked under t and s, never nil.
func (a ContentByStatus) Items(t ContentType, s WatchStatus) []Content {
	if items := a[t][s]; items != nil {
		return items
	}
	return []Content{}
}

// Len counts every item in the aggregate.
func (a ContentByStatus) Len() int {
	n := 0
	for _, byStatus := range a {
		for _, items := range byStatus {
			n += len(items)
		}
	}
	return n
}

// StatusOf finds the status an item is filed under.
func (a ContentByStatus) StatusOf(t ContentType, id string) (WatchStatus, bool) {
	for s, items := range a[t] {
		for _, c := range items {
			if c.Info().ID == id {
				return s, true
			}
		}
	}
	return StatusNone, false
}

// MarshalJSON writes {"movies": {"watched": [...]}, "shows": ..., "anime": ...}.
func (a ContentByStatus) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[WatchStatus][]json.RawMessage, len(a))
	for t, byStatus := range a {
		group := make(map[WatchStatus][]json.RawMessage, len(byStatus))
		for s, items := range byStatus {
			raw := make([]json.RawMessage, 0, len(items))
			for _, c := range items {
				b, err := MarshalContent(c)
				if err != nil {
					return nil, err
				}
				raw = append(raw, b)
			}
			group[s] = raw
		}
		out[t.Plural()] = group
	}
	return json.Marshal(out)
}

func (a *ContentByStatus) UnmarshalJSON(data []byte) error {
	var in map[string]map[WatchStatus][]json.RawMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	agg := NewContentByStatus()
	for key, byStatus := range in {
		t, err := ParseContentType(key)
		if err != nil {
			return err
		}
		for s, items := range byStatus {
			if !s.Valid() {
				return fmt.Errorf("invalid watch status %q", s)
			}
			for _, raw := range items {
				c, err := UnmarshalContent(raw)
				if err != nil {
					return err
				}
				if c.Type() != t {
					return fmt.Errorf("%s item filed under %s", c.Type(), key)
				}
				agg[t][s] = append(agg[t][s], c)
			}
		}
	}
	*a = agg
	return nil
}
