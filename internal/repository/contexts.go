package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/graph"
)

// UpsertContext creates or refreshes an application context node.
func (r *Repository) UpsertContext(ctx context.Context, c domain.Context) error {
	if c.ID == "" {
		return errors.New("context id is required")
	}

	_, err := r.client.ExecuteWrite(ctx, upsertContextCypher, map[string]any{
		"contextId":         c.ID,
		"collection":        c.Collection,
		"verification":      c.Verification,
		"totalSponsorships": c.TotalSponsorships,
	})
	if err != nil {
		return fmt.Errorf("upsert context %s: %w", c.ID, err)
	}
	return nil
}

// GetContext fetches a context together with its used sponsorship count.
func (r *Repository) GetContext(ctx context.Context, contextID string) (domain.Context, error) {
	if contextID == "" {
		return domain.Context{}, errors.New("context id is required")
	}

	res, err := r.client.ExecuteRead(ctx, getContextCypher, map[string]any{"contextId": contextID})
	if err != nil {
		return domain.Context{}, fmt.Errorf("get context %s: %w", contextID, err)
	}
	if len(res.Records) == 0 {
		return domain.Context{}, domain.NotFoundf(domain.CodeContextNotFound, "context %s not found", contextID)
	}
	return contextFromRecord(res.Records[0]), nil
}

// Sponsor spends one sponsorship slot of the context on the user. The
// capacity check and the insert run in one transaction so concurrent calls
// cannot oversubscribe the context. Sponsoring an already sponsored user is
// a no-op that spends nothing.
func (r *Repository) Sponsor(ctx context.Context, key, contextID string) error {
	err := r.client.ExecuteTx(ctx, func(tx graph.Tx) error {
		res, err := tx.Run(ctx, getContextCypher, map[string]any{"contextId": contextID})
		if err != nil {
			return fmt.Errorf("load context: %w", err)
		}
		if len(res.Records) == 0 {
			return domain.NotFoundf(domain.CodeContextNotFound, "context %s not found", contextID)
		}
		c := contextFromRecord(res.Records[0])

		res, err = tx.Run(ctx, hasSponsorshipCypher, map[string]any{
			"key":       key,
			"contextId": contextID,
		})
		if err != nil {
			return fmt.Errorf("check sponsorship: %w", err)
		}
		if len(res.Records) > 0 && toInt64(res.Records[0]["total"]) > 0 {
			return nil
		}

		if c.UnusedSponsorshipSlots() == 0 {
			return domain.CapacityExceeded(contextID)
		}

		if _, err := tx.Run(ctx, createSponsorshipCypher, map[string]any{
			"key":       key,
			"contextId": contextID,
		}); err != nil {
			return fmt.Errorf("create sponsorship: %w", err)
		}
		return nil
	})
	if err != nil {
		if domain.KindOf(err) != "" {
			return err
		}
		return fmt.Errorf("sponsor %s in %s: %w", key, contextID, err)
	}
	return nil
}

// IsSponsored reports whether any context sponsors the user.
func (r *Repository) IsSponsored(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("user key is required")
	}

	res, err := r.client.ExecuteRead(ctx, isSponsoredCypher, map[string]any{"key": key})
	if err != nil {
		return false, fmt.Errorf("is sponsored %s: %w", key, err)
	}
	return len(res.Records) > 0 && toInt64(res.Records[0]["total"]) > 0, nil
}

func contextFromRecord(record graph.Record) domain.Context {
	return domain.Context{
		ID:                toString(record["contextId"]),
		Collection:        toString(record["collection"]),
		Verification:      toString(record["verification"]),
		TotalSponsorships: toInt(record["totalSponsorships"]),
		UsedSponsorships:  toInt(record["usedSponsorships"]),
	}
}

const upsertContextCypher = `
MERGE (c:Context {contextId: $contextId})
SET c.collection = $collection,
    c.verification = $verification,
    c.totalSponsorships = $totalSponsorships
`

const getContextCypher = `
MATCH (c:Context {contextId: $contextId})
RETURN c.contextId AS contextId,
       c.collection AS collection,
       c.verification AS verification,
       coalesce(c.totalSponsorships, 0) AS totalSponsorships,
       COUNT { (:User)-[:SPONSORED_BY]->(c) } AS usedSponsorships
`

const hasSponsorshipCypher = `
MATCH (u:User {key: $key})-[s:SPONSORED_BY]->(c:Context {contextId: $contextId})
RETURN count(s) AS total
`

const createSponsorshipCypher = `
MATCH (c:Context {contextId: $contextId})
MERGE (u:User {key: $key})
ON CREATE SET u.score = 0.0, u.createdAt = timestamp()
MERGE (u)-[:SPONSORED_BY]->(c)
`

const isSponsoredCypher = `
MATCH (u:User {key: $key})-[s:SPONSORED_BY]->(:Context)
RETURN count(s) AS total
`
