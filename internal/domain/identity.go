package domain

// Context is an application-defined namespace with a fixed sponsorship
// capacity and its own verified-account collection.
type Context struct {
	ID                string
	Collection        string
	Verification      string
	TotalSponsorships int
	UsedSponsorships  int
}

// UnusedSponsorshipSlots returns the remaining sponsorship capacity.
func (c Context) UnusedSponsorshipSlots() int {
	remaining := c.TotalSponsorships - c.UsedSponsorships
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AccountLink is a timestamped claim binding a user to an application
// account id within a context. Links are append-only: a newer link
// supersedes an older one but history is retained indefinitely.
type AccountLink struct {
	UserKey   string
	AccountID string
	Timestamp int64
}

// RevocableAccountIDs computes which of a user's past account ids within a
// context are safe to report as revocable. An old id qualifies only when it
// differs from the user's current (most recent) link and no other user's
// current link still points at it, so an application never loses a mapping
// somebody relies on. Input is the full link history of the context.
func RevocableAccountIDs(userKey string, links []AccountLink) []string {
	current := make(map[string]AccountLink, len(links))
	for _, l := range links {
		cur, ok := current[l.UserKey]
		if !ok || l.Timestamp > cur.Timestamp ||
			(l.Timestamp == cur.Timestamp && l.AccountID > cur.AccountID) {
			current[l.UserKey] = l
		}
	}

	inUse := make(map[string]struct{}, len(current))
	for key, l := range current {
		if key != userKey {
			inUse[l.AccountID] = struct{}{}
		}
	}

	ownCurrent := current[userKey].AccountID

	seen := make(map[string]struct{})
	var revocable []string
	for _, l := range links {
		if l.UserKey != userKey || l.AccountID == ownCurrent {
			continue
		}
		if _, taken := inUse[l.AccountID]; taken {
			continue
		}
		if _, dup := seen[l.AccountID]; dup {
			continue
		}
		seen[l.AccountID] = struct{}{}
		revocable = append(revocable, l.AccountID)
	}
	return revocable
}
