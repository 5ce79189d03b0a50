package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Answer is a tagged union of the two answer value shapes: a single selected
// label, or a set of labels for multi-select questions. It serializes to a
// bare JSON string or an array of strings respectively.
type Answer struct {
	Multi bool     `json:"-"`
	Vals  []string `json:"-"`
}

// SingleAnswer builds a single-valued answer.
func SingleAnswer(v string) Answer {
	return Answer{Vals: []string{v}}
}

// MultiAnswer builds a multi-valued answer.
func MultiAnswer(vs ...string) Answer {
	return Answer{Multi: true, Vals: append([]string(nil), vs...)}
}

// IsZero reports whether no value has been selected.
func (a Answer) IsZero() bool {
	if a.Multi {
		return len(a.Vals) == 0
	}
	return len(a.Vals) == 0 || strings.TrimSpace(a.Vals[0]) == ""
}

// Value returns the single selected label. Empty for multi answers.
func (a Answer) Value() string {
	if a.Multi || len(a.Vals) == 0 {
		return ""
	}
	return a.Vals[0]
}

// Values returns all selected labels.
func (a Answer) Values() []string {
	return append([]string(nil), a.Vals...)
}

// normalized returns trimmed labels, sorted when the answer is multi-valued,
// so comparisons are order-independent.
func (a Answer) normalized() []string {
	out := make([]string, 0, len(a.Vals))
	for _, v := range a.Vals {
		out = append(out, strings.TrimSpace(v))
	}
	if a.Multi {
		sort.Strings(out)
	}
	return out
}

// Matches compares the answer against a set of correct labels. Single answers
// must match the lone correct label exactly; multi answers must match the
// correct set regardless of selection order.
func (a Answer) Matches(correct []string) bool {
	want := make([]string, 0, len(correct))
	for _, c := range correct {
		want = append(want, strings.TrimSpace(c))
	}
	sort.Strings(want)

	got := a.normalized()
	if !a.Multi {
		return len(want) == 1 && len(got) == 1 && got[0] == want[0]
	}
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes a single answer as a string and a multi answer as an
// array of strings.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Multi {
		if a.Vals == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(a.Vals)
	}
	return json.Marshal(a.Value())
}

// UnmarshalJSON accepts either a bare string or an array of strings.
func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var vals []string
		if err := json.Unmarshal(trimmed, &vals); err != nil {
			return err
		}
		a.Multi = true
		a.Vals = vals
		return nil
	}

	var v string
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	a.Multi = false
	a.Vals = []string{v}
	return nil
}
