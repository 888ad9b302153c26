package domain

import "sort"

// GroupStage is the lifecycle state of a group. The forming to established
// transition is one-way; established groups never revert and are never
// deleted.
type GroupStage string

const (
	StageForming     GroupStage = "forming"
	StageEstablished GroupStage = "established"
)

// FounderCount is the fixed size of every group's founder set.
const FounderCount = 3

// Group is a trust group. Founders are canonically sorted and fixed at
// creation. While forming, only founders may join; once all founders have
// joined the group flips to established and opens to eligible users.
type Group struct {
	ID        string
	Score     float64
	Founders  []string
	Stage     GroupStage
	Seed      bool
	CreatedAt int64
}

// IsFounder reports whether key belongs to the group's founder set.
func (g Group) IsFounder(key string) bool {
	for _, f := range g.Founders {
		if f == key {
			return true
		}
	}
	return false
}

// SortedFounders returns the canonical ordering of a founder triple.
func SortedFounders(a, b, c string) []string {
	founders := []string{a, b, c}
	sort.Strings(founders)
	return founders
}

// SameFounders compares two canonically sorted founder sets.
func SameFounders(x, y []string) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Membership records a user's membership edge in a group, in either the
// pending (forming) or the established namespace.
type Membership struct {
	UserKey   string
	Timestamp int64
}
