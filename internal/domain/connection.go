package domain

// ConnectionKind distinguishes the two mutually exclusive edge sets kept
// between a pair of users.
type ConnectionKind string

const (
	// KindConnected marks a live trust connection between two users.
	KindConnected ConnectionKind = "connected"
	// KindRemoved marks an explicitly severed connection.
	KindRemoved ConnectionKind = "removed"
)

// PairRecord is one stored edge record for an unordered user pair.
type PairRecord struct {
	Kind      ConnectionKind
	Timestamp int64
}

// CanonicalPair orders two user keys so an unordered pair always maps to the
// same stored direction.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Arbitrate decides whether an incoming pair write wins against the records
// currently stored for the pair. The ledger is a last-writer-wins register:
// the write is accepted only if its timestamp is strictly greater than every
// existing record of either kind. A rejected write is a silent no-op, not an
// error, since stale writes are expected from other nodes.
func Arbitrate(existing []PairRecord, incoming PairRecord) bool {
	for _, rec := range existing {
		if incoming.Timestamp <= rec.Timestamp {
			return false
		}
	}
	return true
}
