package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/graph"
)

// LinkAccount appends a new account link for the user within a context.
// Links are append-only: there is no unlink, a newer link simply supersedes
// the older ones, and the full history stays auditable.
func (r *Repository) LinkAccount(ctx context.Context, key, contextID, accountID string, timestamp int64) error {
	if key == "" || contextID == "" || accountID == "" {
		return errors.New("user key, context id and account id are required")
	}

	err := r.client.ExecuteTx(ctx, func(tx graph.Tx) error {
		res, err := tx.Run(ctx, contextExistsCypher, map[string]any{"contextId": contextID})
		if err != nil {
			return fmt.Errorf("check context: %w", err)
		}
		if len(res.Records) == 0 || toInt64(res.Records[0]["total"]) == 0 {
			return domain.NotFoundf(domain.CodeContextNotFound, "context %s not found", contextID)
		}

		if _, err := tx.Run(ctx, createAccountLinkCypher, map[string]any{
			"key":       key,
			"contextId": contextID,
			"accountId": accountID,
			"timestamp": timestamp,
		}); err != nil {
			return fmt.Errorf("create account link: %w", err)
		}
		return nil
	})
	if err != nil {
		if domain.KindOf(err) != "" {
			return err
		}
		return fmt.Errorf("link account %s in %s: %w", key, contextID, err)
	}
	return nil
}

// ContextLinks returns the full link history of a context, across all
// users, for the revocation computation.
func (r *Repository) ContextLinks(ctx context.Context, contextID string) ([]domain.AccountLink, error) {
	if contextID == "" {
		return nil, errors.New("context id is required")
	}

	res, err := r.client.ExecuteRead(ctx, contextLinksCypher, map[string]any{"contextId": contextID})
	if err != nil {
		return nil, fmt.Errorf("context links %s: %w", contextID, err)
	}

	links := make([]domain.AccountLink, 0, len(res.Records))
	for _, record := range res.Records {
		links = append(links, domain.AccountLink{
			UserKey:   toString(record["key"]),
			AccountID: toString(record["accountId"]),
			Timestamp: toInt64(record["timestamp"]),
		})
	}
	return links, nil
}

const contextExistsCypher = `
MATCH (c:Context {contextId: $contextId})
RETURN count(c) AS total
`

const createAccountLinkCypher = `
MERGE (u:User {key: $key})
ON CREATE SET u.score = 0.0, u.createdAt = $timestamp
MERGE (a:Account {contextId: $contextId, accountId: $accountId})
CREATE (u)-[:HAS_ACCOUNT {timestamp: $timestamp}]->(a)
`

const contextLinksCypher = `
MATCH (u:User)-[l:HAS_ACCOUNT]->(a:Account {contextId: $contextId})
RETURN u.key AS key, a.accountId AS accountId, l.timestamp AS timestamp
`
