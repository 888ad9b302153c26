package domain

// User is a node in the trust graph, keyed by the caller-supplied signing key.
type User struct {
	Key               string
	Score             float64
	Verifications     []string
	EligibleGroups    []string
	EligibleTimestamp int64
	CreatedAt         int64
}

// HasVerification reports whether the user carries the named verification.
func (u User) HasVerification(name string) bool {
	for _, v := range u.Verifications {
		if v == name {
			return true
		}
	}
	return false
}

// UserSummary is the read-model returned to API consumers.
type UserSummary struct {
	Key            string
	Score          float64
	CurrentGroups  []string
	EligibleGroups []string
}
