package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/spsina/BrightID-Aura-Node/internal/domain"
	"github.com/spsina/BrightID-Aura-Node/internal/repository"
)

// GroupStore is the storage contract required by the group lifecycle engine.
type GroupStore interface {
	CreateGroup(ctx context.Context, g domain.Group, creator string) error
	Join(ctx context.Context, groupID, key string, timestamp int64) (repository.JoinResult, error)
	Leave(ctx context.Context, groupID, key string) error
	Dissolve(ctx context.Context, groupID, requester string) error
	GroupByID(ctx context.Context, groupID string) (domain.Group, error)
	GroupMembers(ctx context.Context, groupID string, stage domain.GroupStage) ([]string, error)
}

// GroupService drives the group lifecycle: creation, founder onboarding,
// promotion to established, joins, leaves and dissolution.
type GroupService struct {
	store   GroupStore
	logger  *slog.Logger
	metrics Collector
	newID   func() string
}

// NewGroupService constructs a GroupService.
func NewGroupService(store GroupStore, logger *slog.Logger, metrics Collector) *GroupService {
	return &GroupService{
		store:   store,
		logger:  logger,
		metrics: orNoop(metrics),
		newID:   uuid.NewString,
	}
}

// WithIDGenerator overrides group id minting (used primarily in tests).
func (s *GroupService) WithIDGenerator(fn func() string) {
	if fn != nil {
		s.newID = fn
	}
}

// GroupView is a group together with its member set.
type GroupView struct {
	Group   domain.Group
	Members []string
}

// CreateGroup creates a forming group for the given founder triple. The
// creator must be connected to both cofounders and the triple must not
// already found another group, regardless of argument order.
func (s *GroupService) CreateGroup(ctx context.Context, creator, cofounder1, cofounder2 string, timestamp int64) (domain.Group, error) {
	if err := requireKey("creator key", creator); err != nil {
		return domain.Group{}, err
	}
	if err := requireKey("cofounder key", cofounder1); err != nil {
		return domain.Group{}, err
	}
	if err := requireKey("cofounder key", cofounder2); err != nil {
		return domain.Group{}, err
	}
	if creator == cofounder1 || creator == cofounder2 || cofounder1 == cofounder2 {
		return domain.Group{}, domain.Validationf(domain.CodeDuplicateFounders,
			"founder keys must be distinct")
	}
	if err := requireTimestamp(timestamp); err != nil {
		return domain.Group{}, err
	}

	g := domain.Group{
		ID:        s.newID(),
		Founders:  domain.SortedFounders(creator, cofounder1, cofounder2),
		Stage:     domain.StageForming,
		CreatedAt: timestamp,
	}
	if err := s.store.CreateGroup(ctx, g, creator); err != nil {
		s.metrics.RecordOperation("createGroup", outcomeFor(err))
		return domain.Group{}, err
	}

	s.metrics.RecordOperation("createGroup", OutcomeApplied)
	s.logger.Info("group created", "groupId", g.ID, "creator", creator)
	return g, nil
}

// Join is the unified join entry: the group is looked up and the forming or
// established path taken based on its stage.
func (s *GroupService) Join(ctx context.Context, groupID, key string, timestamp int64) error {
	if err := requireKey("group id", groupID); err != nil {
		return err
	}
	if err := requireKey("user key", key); err != nil {
		return err
	}
	if err := requireTimestamp(timestamp); err != nil {
		return err
	}

	result, err := s.store.Join(ctx, groupID, key, timestamp)
	if err != nil {
		s.metrics.RecordOperation("join", outcomeFor(err))
		return err
	}

	s.metrics.RecordOperation("join", OutcomeApplied)
	if result.Promoted {
		s.metrics.RecordGroupPromotion()
		s.logger.Info("group established", "groupId", groupID, "lastFounder", key)
	}
	return nil
}

// Leave removes the user's established membership; absent membership is a
// no-op.
func (s *GroupService) Leave(ctx context.Context, groupID, key string) error {
	if err := requireKey("group id", groupID); err != nil {
		return err
	}
	if err := requireKey("user key", key); err != nil {
		return err
	}
	return s.store.Leave(ctx, groupID, key)
}

// Dissolve deletes a forming group on behalf of one of its founders.
func (s *GroupService) Dissolve(ctx context.Context, groupID, requester string) error {
	if err := requireKey("group id", groupID); err != nil {
		return err
	}
	if err := requireKey("requester key", requester); err != nil {
		return err
	}

	if err := s.store.Dissolve(ctx, groupID, requester); err != nil {
		s.metrics.RecordOperation("dissolve", outcomeFor(err))
		return err
	}
	s.metrics.RecordOperation("dissolve", OutcomeApplied)
	s.logger.Info("group dissolved", "groupId", groupID, "requester", requester)
	return nil
}

// GetGroup returns the group and its members in the namespace matching its
// stage.
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (GroupView, error) {
	if err := requireKey("group id", groupID); err != nil {
		return GroupView{}, err
	}

	g, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		return GroupView{}, err
	}
	members, err := s.store.GroupMembers(ctx, groupID, g.Stage)
	if err != nil {
		return GroupView{}, err
	}
	return GroupView{Group: g, Members: members}, nil
}

func outcomeFor(err error) string {
	switch domain.KindOf(err) {
	case domain.KindEligibility, domain.KindValidation, domain.KindAuthorization, domain.KindCapacity:
		return OutcomeRejected
	case domain.KindNotFound:
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
