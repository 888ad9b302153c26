package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/repository"
)

type stubGroupStore struct {
	createFn   func(ctx context.Context, g domain.Group, creator string) error
	joinFn     func(ctx context.Context, groupID, key string, timestamp int64) (repository.JoinResult, error)
	leaveFn    func(ctx context.Context, groupID, key string) error
	dissolveFn func(ctx context.Context, groupID, requester string) error
	byIDFn     func(ctx context.Context, groupID string) (domain.Group, error)
	membersFn  func(ctx context.Context, groupID string, stage domain.GroupStage) ([]string, error)
}

func (s *stubGroupStore) CreateGroup(ctx context.Context, g domain.Group, creator string) error {
	return s.createFn(ctx, g, creator)
}

func (s *stubGroupStore) Join(ctx context.Context, groupID, key string, timestamp int64) (repository.JoinResult, error) {
	return s.joinFn(ctx, groupID, key, timestamp)
}

func (s *stubGroupStore) Leave(ctx context.Context, groupID, key string) error {
	return s.leaveFn(ctx, groupID, key)
}

func (s *stubGroupStore) Dissolve(ctx context.Context, groupID, requester string) error {
	return s.dissolveFn(ctx, groupID, requester)
}

func (s *stubGroupStore) GroupByID(ctx context.Context, groupID string) (domain.Group, error) {
	return s.byIDFn(ctx, groupID)
}

func (s *stubGroupStore) GroupMembers(ctx context.Context, groupID string, stage domain.GroupStage) ([]string, error) {
	return s.membersFn(ctx, groupID, stage)
}

func TestCreateGroup_MintsIDAndSortsFounders(t *testing.T) {
	var created domain.Group
	store := &stubGroupStore{
		createFn: func(_ context.Context, g domain.Group, creator string) error {
			created = g
			assert.Equal(t, "carol", creator)
			return nil
		},
	}
	svc := NewGroupService(store, testLogger(), nil)
	svc.WithIDGenerator(func() string { return "fixed-id" })

	g, err := svc.CreateGroup(context.Background(), "carol", "alice", "bob", 1000)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", g.ID)
	assert.Equal(t, []string{"alice", "bob", "carol"}, g.Founders)
	assert.Equal(t, domain.StageForming, g.Stage)
	assert.Equal(t, created, g)
}

func TestCreateGroup_RejectsDuplicateFounderKeys(t *testing.T) {
	svc := NewGroupService(&stubGroupStore{}, testLogger(), nil)

	_, err := svc.CreateGroup(context.Background(), "alice", "alice", "bob", 1000)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = svc.CreateGroup(context.Background(), "alice", "bob", "bob", 1000)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestJoin_PromotionRecordsMetric(t *testing.T) {
	store := &stubGroupStore{
		joinFn: func(context.Context, string, string, int64) (repository.JoinResult, error) {
			return repository.JoinResult{Stage: domain.StageEstablished, Promoted: true}, nil
		},
	}
	collector := &recordingCollector{}
	svc := NewGroupService(store, testLogger(), collector)

	require.NoError(t, svc.Join(context.Background(), "g-1", "carol", 1000))
	assert.Equal(t, 1, collector.promotions)
	assert.Equal(t, []string{"join/applied"}, collector.operations)
}

func TestJoin_EligibilityRejectionIsNotAnErrorOutcome(t *testing.T) {
	store := &stubGroupStore{
		joinFn: func(context.Context, string, string, int64) (repository.JoinResult, error) {
			return repository.JoinResult{}, domain.NotEligible("g-1", "dave")
		},
	}
	collector := &recordingCollector{}
	svc := NewGroupService(store, testLogger(), collector)

	err := svc.Join(context.Background(), "g-1", "dave", 1000)
	assert.Equal(t, domain.KindEligibility, domain.KindOf(err))
	assert.Equal(t, []string{"join/rejected"}, collector.operations)
	assert.Zero(t, collector.promotions)
}

func TestJoin_Validation(t *testing.T) {
	svc := NewGroupService(&stubGroupStore{}, testLogger(), nil)

	assert.Equal(t, domain.KindValidation, domain.KindOf(svc.Join(context.Background(), "", "alice", 100)))
	assert.Equal(t, domain.KindValidation, domain.KindOf(svc.Join(context.Background(), "g-1", "", 100)))
	assert.Equal(t, domain.KindValidation, domain.KindOf(svc.Join(context.Background(), "g-1", "alice", 0)))
}

func TestDissolve(t *testing.T) {
	called := false
	store := &stubGroupStore{
		dissolveFn: func(_ context.Context, groupID, requester string) error {
			called = true
			assert.Equal(t, "g-1", groupID)
			assert.Equal(t, "alice", requester)
			return nil
		},
	}
	svc := NewGroupService(store, testLogger(), nil)

	require.NoError(t, svc.Dissolve(context.Background(), "g-1", "alice"))
	assert.True(t, called)
}

func TestGetGroup_UsesStageMatchingNamespace(t *testing.T) {
	store := &stubGroupStore{
		byIDFn: func(context.Context, string) (domain.Group, error) {
			return domain.Group{ID: "g-1", Stage: domain.StageForming}, nil
		},
		membersFn: func(_ context.Context, _ string, stage domain.GroupStage) ([]string, error) {
			assert.Equal(t, domain.StageForming, stage)
			return []string{"alice"}, nil
		},
	}
	svc := NewGroupService(store, testLogger(), nil)

	view, err := svc.GetGroup(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, "g-1", view.Group.ID)
	assert.Equal(t, []string{"alice"}, view.Members)
}
