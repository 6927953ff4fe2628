package membership

import (
	"encoding/json"
	"iter"
	"slices"
)

// CapabilitySet is an immutable, name ordered set of tag names.
// The zero value is the empty set.
type CapabilitySet struct {
	names []string
}

// NewCapabilitySet sorts and de-duplicates names. Empty names are dropped.
func NewCapabilitySet(names ...string) CapabilitySet {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return CapabilitySet{names: slices.Compact(out)}
}

// All yields names in order. The sequence can be ranged any number of times.
func (s CapabilitySet) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range s.names {
			if !yield(name) {
				return
			}
		}
	}
}

// Has reports whether name is in the set
func (s CapabilitySet) Has(name string) bool {
	_, found := slices.BinarySearch(s.names, name)
	return found
}

// HasAny reports whether the set intersects names. An empty list is false.
func (s CapabilitySet) HasAny(names ...string) bool {
	for _, name := range names {
		if s.Has(name) {
			return true
		}
	}
	return false
}

// Len returns the number of names
func (s CapabilitySet) Len() int {
	return len(s.names)
}

// Names returns a copy of the ordered names
func (s CapabilitySet) Names() []string {
	return slices.Clone(s.names)
}

// Diff returns the names to grant and to revoke to turn s into desired
func (s CapabilitySet) Diff(desired CapabilitySet) (grant, revoke []string) {
	for name := range desired.All() {
		if !s.Has(name) {
			grant = append(grant, name)
		}
	}
	for name := range s.All() {
		if !desired.Has(name) {
			revoke = append(revoke, name)
		}
	}
	return grant, revoke
}

func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	if s.names == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.names)
}

func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewCapabilitySet(names...)
	return nil
}
