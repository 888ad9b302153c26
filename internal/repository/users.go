package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/graph"
)

// EnsureUser creates the user node on first registration; repeated calls are
// harmless.
func (r *Repository) EnsureUser(ctx context.Context, key string, timestamp int64) error {
	if key == "" {
		return errors.New("user key is required")
	}

	_, err := r.client.ExecuteWrite(ctx, ensureUserCypher, map[string]any{
		"key":       key,
		"timestamp": timestamp,
	})
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", key, err)
	}
	return nil
}

// GetUser fetches a user node by key.
func (r *Repository) GetUser(ctx context.Context, key string) (domain.User, error) {
	if key == "" {
		return domain.User{}, errors.New("user key is required")
	}

	res, err := r.client.ExecuteRead(ctx, getUserCypher, map[string]any{"key": key})
	if err != nil {
		return domain.User{}, fmt.Errorf("get user %s: %w", key, err)
	}
	if len(res.Records) == 0 {
		return domain.User{}, domain.NotFoundf(domain.CodeUserNotFound, "user %s not found", key)
	}
	return userFromRecord(res.Records[0]), nil
}

// SetEligibleGroups caches a freshly discovered eligible-group list on the
// user node together with the recompute timestamp that gates staleness.
func (r *Repository) SetEligibleGroups(ctx context.Context, key string, groups []string, timestamp int64) error {
	if groups == nil {
		groups = []string{}
	}

	_, err := r.client.ExecuteWrite(ctx, setEligibleGroupsCypher, map[string]any{
		"key":       key,
		"groups":    groups,
		"timestamp": timestamp,
	})
	if err != nil {
		return fmt.Errorf("set eligible groups for %s: %w", key, err)
	}
	return nil
}

// AllUsers returns every user key and score, used by the scorer.
func (r *Repository) AllUsers(ctx context.Context) ([]domain.User, error) {
	res, err := r.client.ExecuteRead(ctx, allUsersCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("all users: %w", err)
	}

	users := make([]domain.User, 0, len(res.Records))
	for _, record := range res.Records {
		users = append(users, domain.User{
			Key:   toString(record["key"]),
			Score: toFloat64(record["score"]),
		})
	}
	return users, nil
}

// AllMemberships returns every established membership with the owning
// group's seed flag, used by the scorer to place initial rank mass.
func (r *Repository) AllMemberships(ctx context.Context) ([]GroupMembership, error) {
	res, err := r.client.ExecuteRead(ctx, allMembershipsCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("all memberships: %w", err)
	}

	memberships := make([]GroupMembership, 0, len(res.Records))
	for _, record := range res.Records {
		memberships = append(memberships, GroupMembership{
			UserKey: toString(record["key"]),
			GroupID: toString(record["groupId"]),
			Seed:    toBool(record["seed"]),
		})
	}
	return memberships, nil
}

// GroupMembership pairs an established member with its group.
type GroupMembership struct {
	UserKey string
	GroupID string
	Seed    bool
}

// UpdateUserScore writes a recomputed score back to the user node.
func (r *Repository) UpdateUserScore(ctx context.Context, key string, score float64) error {
	_, err := r.client.ExecuteWrite(ctx, updateUserScoreCypher, map[string]any{
		"key":   key,
		"score": score,
	})
	if err != nil {
		return fmt.Errorf("update score of %s: %w", key, err)
	}
	return nil
}

// UpdateGroupScore writes a recomputed score back to the group node.
func (r *Repository) UpdateGroupScore(ctx context.Context, groupID string, score float64) error {
	_, err := r.client.ExecuteWrite(ctx, updateGroupScoreCypher, map[string]any{
		"groupId": groupID,
		"score":   score,
	})
	if err != nil {
		return fmt.Errorf("update score of group %s: %w", groupID, err)
	}
	return nil
}

func userFromRecord(record graph.Record) domain.User {
	return domain.User{
		Key:               toString(record["key"]),
		Score:             toFloat64(record["score"]),
		Verifications:     toStringSlice(record["verifications"]),
		EligibleGroups:    toStringSlice(record["eligibleGroups"]),
		EligibleTimestamp: toInt64(record["eligibleTimestamp"]),
		CreatedAt:         toInt64(record["createdAt"]),
	}
}

const ensureUserCypher = `
MERGE (u:User {key: $key})
ON CREATE SET u.score = 0.0, u.createdAt = $timestamp
`

const getUserCypher = `
MATCH (u:User {key: $key})
RETURN u.key AS key,
       u.score AS score,
       coalesce(u.verifications, []) AS verifications,
       coalesce(u.eligibleGroups, []) AS eligibleGroups,
       coalesce(u.eligibleTimestamp, 0) AS eligibleTimestamp,
       coalesce(u.createdAt, 0) AS createdAt
`

const setEligibleGroupsCypher = `
MATCH (u:User {key: $key})
SET u.eligibleGroups = $groups, u.eligibleTimestamp = $timestamp
`

const allUsersCypher = `
MATCH (u:User)
RETURN u.key AS key, coalesce(u.score, 0.0) AS score
`

const allMembershipsCypher = `
MATCH (u:User)-[:MEMBER_OF]->(g:Group)
RETURN u.key AS key, g.groupId AS groupId, coalesce(g.seed, false) AS seed
`

const updateUserScoreCypher = `
MATCH (u:User {key: $key})
SET u.score = $score
`

const updateGroupScoreCypher = `
MATCH (g:Group {groupId: $groupId})
SET g.score = $score
`
