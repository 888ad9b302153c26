package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/graph"
)

// JoinResult describes the outcome of a group join.
type JoinResult struct {
	Stage    domain.GroupStage
	Promoted bool
}

// CreateGroup persists a new forming group after validating, inside one
// transaction, that no group with the same founder triple exists and that
// the creator is connected to both cofounders. The creator becomes the only
// pending member; the other founders must join on their own.
func (r *Repository) CreateGroup(ctx context.Context, g domain.Group, creator string) error {
	if g.ID == "" {
		return errors.New("group id is required")
	}
	if len(g.Founders) != domain.FounderCount {
		return fmt.Errorf("expected %d founders, got %d", domain.FounderCount, len(g.Founders))
	}

	cofounders := make([]string, 0, domain.FounderCount-1)
	for _, f := range g.Founders {
		if f != creator {
			cofounders = append(cofounders, f)
		}
	}

	err := r.client.ExecuteTx(ctx, func(tx graph.Tx) error {
		res, err := tx.Run(ctx, groupByFoundersCypher, map[string]any{"founders": g.Founders})
		if err != nil {
			return fmt.Errorf("check founder triple: %w", err)
		}
		if len(res.Records) > 0 && toInt64(res.Records[0]["total"]) > 0 {
			return domain.Validationf(domain.CodeDuplicateFounders,
				"a group with founders %v already exists", g.Founders)
		}

		res, err = tx.Run(ctx, creatorLinksCypher, map[string]any{
			"creator":    creator,
			"cofounders": cofounders,
		})
		if err != nil {
			return fmt.Errorf("check creator connections: %w", err)
		}
		linked := 0
		if len(res.Records) > 0 {
			linked = toInt(res.Records[0]["linked"])
		}
		if linked < len(cofounders) {
			return domain.Validationf(domain.CodeFoundersNotLinked,
				"creator %s is not connected to both cofounders", creator)
		}

		_, err = tx.Run(ctx, createGroupCypher, map[string]any{
			"groupId":   g.ID,
			"founders":  g.Founders,
			"state":     string(domain.StageForming),
			"creator":   creator,
			"timestamp": g.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		return nil
	})
	if err != nil {
		if domain.KindOf(err) != "" {
			return err
		}
		return fmt.Errorf("create group %s: %w", g.ID, err)
	}
	return nil
}

// Join applies the unified join operation. The group is loaded inside the
// transaction and dispatched on its stage: forming groups accept only
// founders and promote once the founder set is complete, established groups
// accept any user passing the eligibility rule. Promotion migrates every
// pending membership to the established namespace in the same transaction.
func (r *Repository) Join(ctx context.Context, groupID, key string, timestamp int64) (JoinResult, error) {
	var result JoinResult
	err := r.client.ExecuteTx(ctx, func(tx graph.Tx) error {
		g, err := groupInTx(ctx, tx, groupID)
		if err != nil {
			return err
		}
		result.Stage = g.Stage

		if g.Stage == domain.StageForming {
			promoted, err := r.joinForming(ctx, tx, g, key, timestamp)
			if err != nil {
				return err
			}
			result.Promoted = promoted
			if promoted {
				result.Stage = domain.StageEstablished
			}
			return nil
		}
		return r.joinEstablished(ctx, tx, g, key, timestamp)
	})
	if err != nil {
		if domain.KindOf(err) != "" {
			return JoinResult{}, err
		}
		return JoinResult{}, fmt.Errorf("join group %s: %w", groupID, err)
	}
	return result, nil
}

func (r *Repository) joinForming(ctx context.Context, tx graph.Tx, g domain.Group, key string, timestamp int64) (bool, error) {
	if !g.IsFounder(key) {
		return false, domain.Authorizationf(domain.CodeNotFounder,
			"user %s is not a founder of group %s", key, g.ID)
	}

	params := map[string]any{
		"groupId":   g.ID,
		"key":       key,
		"timestamp": timestamp,
	}
	if _, err := tx.Run(ctx, upsertPendingMembershipCypher, params); err != nil {
		return false, fmt.Errorf("upsert pending membership: %w", err)
	}

	res, err := tx.Run(ctx, pendingMemberKeysCypher, map[string]any{"groupId": g.ID})
	if err != nil {
		return false, fmt.Errorf("count pending members: %w", err)
	}
	joined := 0
	if len(res.Records) > 0 {
		joined = len(toStringSlice(res.Records[0]["keys"]))
	}
	if joined < domain.FounderCount {
		return false, nil
	}

	if _, err := tx.Run(ctx, promoteGroupCypher, map[string]any{
		"groupId":     g.ID,
		"established": string(domain.StageEstablished),
	}); err != nil {
		return false, fmt.Errorf("promote group: %w", err)
	}
	return true, nil
}

func (r *Repository) joinEstablished(ctx context.Context, tx graph.Tx, g domain.Group, key string, timestamp int64) error {
	res, err := tx.Run(ctx, eligibilityCountsCypher, map[string]any{
		"groupId": g.ID,
		"key":     key,
	})
	if err != nil {
		return fmt.Errorf("read eligibility counts: %w", err)
	}
	if len(res.Records) == 0 {
		return domain.NotFoundf(domain.CodeGroupNotFound, "group %s not found", g.ID)
	}

	record := res.Records[0]
	if toBool(record["already"]) {
		return nil
	}
	if !domain.Eligible(toInt(record["matching"]), toInt(record["members"])) {
		return domain.NotEligible(g.ID, key)
	}

	if _, err := tx.Run(ctx, upsertMembershipCypher, map[string]any{
		"groupId":   g.ID,
		"key":       key,
		"timestamp": timestamp,
	}); err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

// Leave deletes the user's established membership if present; leaving a
// group the user never joined is a no-op.
func (r *Repository) Leave(ctx context.Context, groupID, key string) error {
	_, err := r.client.ExecuteWrite(ctx, leaveGroupCypher, map[string]any{
		"groupId": groupID,
		"key":     key,
	})
	if err != nil {
		return fmt.Errorf("leave group %s: %w", groupID, err)
	}
	return nil
}

// Dissolve deletes a forming group and all of its pending memberships. Only
// founders may dissolve, and only while the group is still forming.
func (r *Repository) Dissolve(ctx context.Context, groupID, requester string) error {
	err := r.client.ExecuteTx(ctx, func(tx graph.Tx) error {
		g, err := groupInTx(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if g.Stage != domain.StageForming {
			return domain.Validationf(domain.CodeNotForming,
				"group %s is established and cannot be dissolved", groupID)
		}
		if !g.IsFounder(requester) {
			return domain.Authorizationf(domain.CodeNotFounder,
				"user %s is not a founder of group %s", requester, groupID)
		}

		if _, err := tx.Run(ctx, dissolveGroupCypher, map[string]any{"groupId": groupID}); err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		return nil
	})
	if err != nil {
		if domain.KindOf(err) != "" {
			return err
		}
		return fmt.Errorf("dissolve group %s: %w", groupID, err)
	}
	return nil
}

// GroupByID fetches a single group record.
func (r *Repository) GroupByID(ctx context.Context, groupID string) (domain.Group, error) {
	if groupID == "" {
		return domain.Group{}, errors.New("group id is required")
	}

	res, err := r.client.ExecuteRead(ctx, groupByIDCypher, map[string]any{"groupId": groupID})
	if err != nil {
		return domain.Group{}, fmt.Errorf("get group %s: %w", groupID, err)
	}
	if len(res.Records) == 0 {
		return domain.Group{}, domain.NotFoundf(domain.CodeGroupNotFound, "group %s not found", groupID)
	}
	return groupFromRecord(res.Records[0]), nil
}

// GroupMembers returns the member keys of a group in the namespace matching
// its stage.
func (r *Repository) GroupMembers(ctx context.Context, groupID string, stage domain.GroupStage) ([]string, error) {
	cypher := establishedMembersCypher
	if stage == domain.StageForming {
		cypher = pendingMembersCypher
	}

	res, err := r.client.ExecuteRead(ctx, cypher, map[string]any{"groupId": groupID})
	if err != nil {
		return nil, fmt.Errorf("group members %s: %w", groupID, err)
	}

	members := make([]string, 0, len(res.Records))
	for _, record := range res.Records {
		if key := toString(record["key"]); key != "" {
			members = append(members, key)
		}
	}
	return members, nil
}

// CurrentGroups returns the ids of the established groups a user belongs to.
func (r *Repository) CurrentGroups(ctx context.Context, key string) ([]string, error) {
	res, err := r.client.ExecuteRead(ctx, currentGroupsCypher, map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("current groups of %s: %w", key, err)
	}

	groups := make([]string, 0, len(res.Records))
	for _, record := range res.Records {
		if id := toString(record["groupId"]); id != "" {
			groups = append(groups, id)
		}
	}
	return groups, nil
}

// EligibleCandidates runs the cheap adjacency prefilter of eligible-group
// discovery: established groups, outside the exclusion set, where at least
// two of the user's connections are already members. The exact rule is
// applied by the caller over the returned counts.
func (r *Repository) EligibleCandidates(ctx context.Context, key string, exclude []string) ([]domain.GroupCandidate, error) {
	if exclude == nil {
		exclude = []string{}
	}

	res, err := r.client.ExecuteRead(ctx, eligibleCandidatesCypher, map[string]any{
		"key":        key,
		"exclude":    exclude,
		"minMatches": domain.MinCandidateMatches,
	})
	if err != nil {
		return nil, fmt.Errorf("eligible candidates for %s: %w", key, err)
	}

	candidates := make([]domain.GroupCandidate, 0, len(res.Records))
	for _, record := range res.Records {
		candidates = append(candidates, domain.GroupCandidate{
			GroupID:  toString(record["groupId"]),
			Matching: toInt(record["matching"]),
			Members:  toInt(record["members"]),
		})
	}
	return candidates, nil
}

// IsEligibleCounts reads the exact member and matching-connection counts for
// a single user/group decision.
func (r *Repository) IsEligibleCounts(ctx context.Context, groupID, key string) (matching, members int, err error) {
	res, err := r.client.ExecuteRead(ctx, eligibilityCountsCypher, map[string]any{
		"groupId": groupID,
		"key":     key,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("eligibility counts %s/%s: %w", groupID, key, err)
	}
	if len(res.Records) == 0 {
		return 0, 0, domain.NotFoundf(domain.CodeGroupNotFound, "group %s not found", groupID)
	}
	record := res.Records[0]
	return toInt(record["matching"]), toInt(record["members"]), nil
}

func groupInTx(ctx context.Context, tx graph.Tx, groupID string) (domain.Group, error) {
	res, err := tx.Run(ctx, groupByIDCypher, map[string]any{"groupId": groupID})
	if err != nil {
		return domain.Group{}, fmt.Errorf("load group: %w", err)
	}
	if len(res.Records) == 0 {
		return domain.Group{}, domain.NotFoundf(domain.CodeGroupNotFound, "group %s not found", groupID)
	}
	return groupFromRecord(res.Records[0]), nil
}

func groupFromRecord(record graph.Record) domain.Group {
	return domain.Group{
		ID:        toString(record["groupId"]),
		Score:     toFloat64(record["score"]),
		Founders:  toStringSlice(record["founders"]),
		Stage:     domain.GroupStage(toString(record["state"])),
		Seed:      toBool(record["seed"]),
		CreatedAt: toInt64(record["timestamp"]),
	}
}

const groupByIDCypher = `
MATCH (g:Group {groupId: $groupId})
RETURN g.groupId AS groupId,
       g.score AS score,
       g.founders AS founders,
       g.state AS state,
       coalesce(g.seed, false) AS seed,
       g.timestamp AS timestamp
`

const groupByFoundersCypher = `
MATCH (g:Group)
WHERE g.founders = $founders
RETURN count(g) AS total
`

const creatorLinksCypher = `
MATCH (c:User {key: $creator})-[:CONNECTED]-(peer:User)
WHERE peer.key IN $cofounders
RETURN count(DISTINCT peer.key) AS linked
`

const createGroupCypher = `
MERGE (c:User {key: $creator})
ON CREATE SET c.score = 0.0, c.createdAt = $timestamp
CREATE (g:Group {groupId: $groupId, score: 0.0, founders: $founders, state: $state, timestamp: $timestamp})
CREATE (c)-[:PENDING_MEMBER_OF {timestamp: $timestamp}]->(g)
`

const upsertPendingMembershipCypher = `
MATCH (g:Group {groupId: $groupId})
MERGE (u:User {key: $key})
ON CREATE SET u.score = 0.0, u.createdAt = $timestamp
MERGE (u)-[m:PENDING_MEMBER_OF]->(g)
ON CREATE SET m.timestamp = $timestamp
`

const pendingMemberKeysCypher = `
MATCH (u:User)-[:PENDING_MEMBER_OF]->(g:Group {groupId: $groupId})
RETURN collect(DISTINCT u.key) AS keys
`

const promoteGroupCypher = `
MATCH (g:Group {groupId: $groupId})
SET g.state = $established
WITH g
MATCH (u:User)-[pm:PENDING_MEMBER_OF]->(g)
CREATE (u)-[:MEMBER_OF {timestamp: pm.timestamp}]->(g)
DELETE pm
`

const eligibilityCountsCypher = `
MATCH (g:Group {groupId: $groupId})
OPTIONAL MATCH (m:User)-[:MEMBER_OF]->(g)
WITH g, count(DISTINCT m) AS members
OPTIONAL MATCH (u:User {key: $key})-[:CONNECTED]-(peer:User)-[:MEMBER_OF]->(g)
RETURN members,
       count(DISTINCT peer) AS matching,
       COUNT { (:User {key: $key})-[:MEMBER_OF]->(g) } > 0 AS already
`

const upsertMembershipCypher = `
MATCH (g:Group {groupId: $groupId})
MERGE (u:User {key: $key})
ON CREATE SET u.score = 0.0, u.createdAt = $timestamp
MERGE (u)-[m:MEMBER_OF]->(g)
ON CREATE SET m.timestamp = $timestamp
`

const leaveGroupCypher = `
MATCH (u:User {key: $key})-[m:MEMBER_OF]->(g:Group {groupId: $groupId})
DELETE m
`

const dissolveGroupCypher = `
MATCH (g:Group {groupId: $groupId})
DETACH DELETE g
`

const establishedMembersCypher = `
MATCH (u:User)-[:MEMBER_OF]->(g:Group {groupId: $groupId})
RETURN u.key AS key
`

const pendingMembersCypher = `
MATCH (u:User)-[:PENDING_MEMBER_OF]->(g:Group {groupId: $groupId})
RETURN u.key AS key
`

const currentGroupsCypher = `
MATCH (u:User {key: $key})-[:MEMBER_OF]->(g:Group)
RETURN g.groupId AS groupId
`

const eligibleCandidatesCypher = `
MATCH (u:User {key: $key})-[:CONNECTED]-(c:User)-[:MEMBER_OF]->(g:Group)
WHERE g.state = "established" AND NOT g.groupId IN $exclude
WITH g, count(DISTINCT c) AS matching
WHERE matching >= $minMatches
MATCH (m:User)-[:MEMBER_OF]->(g)
RETURN g.groupId AS groupId, matching, count(DISTINCT m) AS members
ORDER BY matching DESC
`
