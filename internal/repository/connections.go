package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/graph"
)

const (
	relConnected = "CONNECTED"
	relRemoved   = "REMOVED"
)

func relTypeFor(kind domain.ConnectionKind) (string, error) {
	switch kind {
	case domain.KindConnected:
		return relConnected, nil
	case domain.KindRemoved:
		return relRemoved, nil
	default:
		return "", fmt.Errorf("unknown connection kind %q", kind)
	}
}

func kindFor(relType string) domain.ConnectionKind {
	if relType == relRemoved {
		return domain.KindRemoved
	}
	return domain.KindConnected
}

// ReplaceConnection arbitrates an incoming connection or removal write for
// an unordered user pair. Inside one transaction it reads every live record
// of both kinds, applies the last-writer-wins comparator, and on acceptance
// deletes all existing records before inserting the new one. The returned
// flag reports whether the write won; a lost arbitration is not an error.
func (r *Repository) ReplaceConnection(ctx context.Context, a, b string, kind domain.ConnectionKind, timestamp int64) (bool, error) {
	relType, err := relTypeFor(kind)
	if err != nil {
		return false, err
	}

	first, second := domain.CanonicalPair(a, b)
	params := map[string]any{
		"a":         first,
		"b":         second,
		"timestamp": timestamp,
	}

	applied := false
	err = r.client.ExecuteTx(ctx, func(tx graph.Tx) error {
		res, err := tx.Run(ctx, pairRecordsCypher, params)
		if err != nil {
			return fmt.Errorf("read pair records: %w", err)
		}

		existing := make([]domain.PairRecord, 0, len(res.Records))
		for _, record := range res.Records {
			existing = append(existing, domain.PairRecord{
				Kind:      kindFor(toString(record["kind"])),
				Timestamp: toInt64(record["timestamp"]),
			})
		}

		incoming := domain.PairRecord{Kind: kind, Timestamp: timestamp}
		if !domain.Arbitrate(existing, incoming) {
			return nil
		}

		// Delete over all matches, not just the expected single record,
		// so a damaged pair heals on the next accepted write.
		if len(existing) > 0 {
			if _, err := tx.Run(ctx, deletePairRecordsCypher, params); err != nil {
				return fmt.Errorf("delete pair records: %w", err)
			}
		}
		if _, err := tx.Run(ctx, fmt.Sprintf(insertPairRecordCypherTemplate, relType), params); err != nil {
			return fmt.Errorf("insert pair record: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("replace connection %s-%s: %w", first, second, err)
	}
	return applied, nil
}

// ConnectionsOf returns the deduplicated peer set of a user's live
// connections. Removal records never contribute.
func (r *Repository) ConnectionsOf(ctx context.Context, key string) ([]string, error) {
	if key == "" {
		return nil, errors.New("user key is required")
	}

	res, err := r.client.ExecuteRead(ctx, connectionsOfCypher, map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("connections of %s: %w", key, err)
	}

	peers := make([]string, 0, len(res.Records))
	for _, record := range res.Records {
		if peer := toString(record["key"]); peer != "" {
			peers = append(peers, peer)
		}
	}
	return peers, nil
}

// AllConnections returns every live connection pair, used by the scorer to
// load the whole graph.
func (r *Repository) AllConnections(ctx context.Context) ([][2]string, error) {
	res, err := r.client.ExecuteRead(ctx, allConnectionsCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("all connections: %w", err)
	}

	pairs := make([][2]string, 0, len(res.Records))
	for _, record := range res.Records {
		pairs = append(pairs, [2]string{toString(record["a"]), toString(record["b"])})
	}
	return pairs, nil
}

const pairRecordsCypher = `
MATCH (a:User {key: $a})-[r:CONNECTED|REMOVED]-(b:User {key: $b})
RETURN type(r) AS kind, r.timestamp AS timestamp
`

const deletePairRecordsCypher = `
MATCH (a:User {key: $a})-[r:CONNECTED|REMOVED]-(b:User {key: $b})
DELETE r
`

const insertPairRecordCypherTemplate = `
MERGE (a:User {key: $a})
ON CREATE SET a.score = 0.0, a.createdAt = $timestamp
MERGE (b:User {key: $b})
ON CREATE SET b.score = 0.0, b.createdAt = $timestamp
CREATE (a)-[:%s {timestamp: $timestamp}]->(b)
`

const connectionsOfCypher = `
MATCH (u:User {key: $key})-[:CONNECTED]-(peer:User)
RETURN DISTINCT peer.key AS key
`

const allConnectionsCypher = `
MATCH (a:User)-[:CONNECTED]->(b:User)
RETURN a.key AS a, b.key AS b
`
