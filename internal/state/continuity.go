package state

import (
	"encoding/json"
	"strings"
)

// MaxContinuityItems caps every continuity list; the oldest entries are
// evicted first.
const MaxContinuityItems = 25

// ContinuityList names one of the continuity lists.
type ContinuityList string

const (
	DecisionLog     ContinuityList = "decision_log"
	RadicalValues   ContinuityList = "radical_values"
	RefusalSignals  ContinuityList = "refusal_signals"
	OpenAssumptions ContinuityList = "open_assumptions"
)

// Continuity is the cross-phase memory folded in after each validated phase.
type Continuity struct {
	DecisionLog     []string `json:"decision_log"`
	RadicalValues   []string `json:"radical_values"`
	RefusalSignals  []string `json:"refusal_signals"`
	OpenAssumptions []string `json:"open_assumptions"`
}

func (c *Continuity) list(name ContinuityList) *[]string {
	switch name {
	case DecisionLog:
		return &c.DecisionLog
	case RadicalValues:
		return &c.RadicalValues
	case RefusalSignals:
		return &c.RefusalSignals
	case OpenAssumptions:
		return &c.OpenAssumptions
	}
	return nil
}

// Append adds value to the named list. Blank values and values already
// present are skipped.
func (c *Continuity) Append(name ContinuityList, value string) {
	value = strings.TrimSpace(value)
	bucket := c.list(name)
	if bucket == nil || value == "" {
		return
	}
	for _, existing := range *bucket {
		if existing == value {
			return
		}
	}
	*bucket = append(*bucket, value)
	if n := len(*bucket); n > MaxContinuityItems {
		*bucket = append([]string(nil), (*bucket)[n-MaxContinuityItems:]...)
	}
}

// Get returns a copy of the named list.
func (c Continuity) Get(name ContinuityList) []string {
	bucket := c.list(name)
	if bucket == nil {
		return nil
	}
	return append([]string{}, (*bucket)...)
}

// MarshalJSON renders missing lists as [].
func (c Continuity) MarshalJSON() ([]byte, error) {
	type plain Continuity
	for _, name := range []ContinuityList{DecisionLog, RadicalValues, RefusalSignals, OpenAssumptions} {
		if b := c.list(name); *b == nil {
			*b = []string{}
		}
	}
	return json.Marshal(plain(c))
}

// decodeContinuity keeps only non-blank string items of the known lists.
func decodeContinuity(data json.RawMessage) Continuity {
	var c Continuity
	var raw map[string]json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &raw) != nil {
		return c
	}
	for _, name := range []ContinuityList{DecisionLog, RadicalValues, RefusalSignals, OpenAssumptions} {
		var items []json.RawMessage
		if json.Unmarshal(raw[string(name)], &items) != nil {
			continue
		}
		bucket := c.list(name)
		for _, item := range items {
			s, ok := stringValue(item)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				*bucket = append(*bucket, s)
			}
		}
	}
	return c
}
