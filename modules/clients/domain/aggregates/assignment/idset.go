package assignment

import (
	"slices"
	"strings"
)

// IDSet is a set of opaque assignee ids.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids, ignoring blanks and duplicates.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

func (s IDSet) Remove(id string) { delete(s, id) }

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Len() int { return len(s) }

func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func (s IDSet) Equal(other IDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// minus returns members of s absent from other, sorted.
func (s IDSet) minus(other IDSet) []string {
	var out []string
	for id := range s {
		if !other.Has(id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
