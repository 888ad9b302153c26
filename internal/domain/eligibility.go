package domain

import "sort"

// Eligible applies the membership-eligibility rule: a user may join a group
// precisely when strictly more than half of the group's current members are
// among the user's connections. Evaluated against the member count at
// decision time, never at proposal time.
func Eligible(matching, members int) bool {
	return 2*matching > members
}

// GroupCandidate is one result of the cheap adjacency prefilter used during
// eligible-group discovery, before the exact rule is applied.
type GroupCandidate struct {
	GroupID  string
	Matching int
	Members  int
}

// MinCandidateMatches is the prefilter floor: a group with more than the
// founder count of members cannot pass the exact rule with fewer than two
// matching connections.
const MinCandidateMatches = 2

// RankEligible verifies each candidate against the exact eligibility rule
// and returns the survivors ranked by descending matching-connection count.
// The prefilter is never trusted on its own; the exact check is the source
// of truth.
func RankEligible(candidates []GroupCandidate) []GroupCandidate {
	eligible := make([]GroupCandidate, 0, len(candidates))
	for _, c := range candidates {
		if Eligible(c.Matching, c.Members) {
			eligible = append(eligible, c)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Matching > eligible[j].Matching
	})
	return eligible
}
