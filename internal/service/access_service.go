package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"studyshare/internal/model"
	"studyshare/internal/pubsub"
	"studyshare/internal/repository"

	"github.com/rs/zerolog"
)

// ErrAccountLookup marks failures to read or write a user's access account.
var ErrAccountLookup = errors.New("access account lookup failed")

const (
	EventResourceUnlocked = "resource_unlocked"
	EventBonusGranted     = "bonus_granted"
)

// AccessEvent is published after every state change of an access account.
type AccessEvent struct {
	Type           string            `json:"type"`
	UserID         string            `json:"user_id"`
	ResourceID     string            `json:"resource_id,omitempty"`
	MonthYear      string            `json:"month_year"`
	Reason         model.GrantReason `json:"reason,omitempty"`
	Magnitude      int               `json:"magnitude,omitempty"`
	ViewsThisMonth int               `json:"views_this_month"`
	MaxViews       int               `json:"max_views_this_month"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// AccessService is the monthly access gate.
type AccessService interface {
	// CheckAccess decides whether userID may view resourceID, spending one unit of the
	// month's allowance on a first view. On error the decision is always locked.
	CheckAccess(ctx context.Context, userID, resourceID string) (model.AccessDecision, error)
	// GrantBonusForUpload adds the upload bonus to the current month. Every call stacks.
	GrantBonusForUpload(ctx context.Context, userID string) (model.AccessInfo, error)
	// GrantBonusForAdWatch adds the ad bonus unless the month's ad cap is reached,
	// in which case nothing changes and no error is returned.
	GrantBonusForAdWatch(ctx context.Context, userID string) (model.AccessInfo, error)
	HasViewed(ctx context.Context, userID, resourceID string) (bool, error)
	GetAccessInfo(ctx context.Context, userID string) (model.AccessInfo, error)
	ListViewedResources(ctx context.Context, userID string, limit, offset int) ([]model.ViewedResource, error)
}

type accessService struct {
	repo      repository.AccessRepository
	resources repository.ResourceRepository
	policy    model.AccessPolicy
	publisher pubsub.Publisher
	topic     string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewAccessService wires the gate. publisher may be nil, in which case no events are sent.
func NewAccessService(
	repo repository.AccessRepository,
	resources repository.ResourceRepository,
	policy model.AccessPolicy,
	publisher pubsub.Publisher,
	topic string,
	logger zerolog.Logger,
) AccessService {
	return &accessService{
		repo:      repo,
		resources: resources,
		policy:    policy,
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
		logger:    logger.With().Str("service", "AccessService").Logger(),
	}
}

func (s *accessService) CheckAccess(ctx context.Context, userID, resourceID string) (model.AccessDecision, error) {
	now := s.now()
	if !s.policy.Enabled {
		return model.AccessDecision{CanView: true, Reason: model.DecisionGateDisabled, ResetTime: s.policy.NextReset(now)}, nil
	}
	anchor := s.policy.MonthAnchor(now)
	locked := model.AccessDecision{Reason: model.DecisionUnavailable, ResetTime: s.policy.NextReset(now)}

	res, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		s.logger.Error().Err(err).Str("resource_id", resourceID).Msg("Failed to load resource for access check")
		return locked, fmt.Errorf("%w: %w", ErrAccountLookup, err)
	}
	if res != nil && res.UploaderID == userID {
		acct, err := s.repo.GetOrCreateAccount(ctx, userID, anchor)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load access account")
			return locked, fmt.Errorf("%w: %w", ErrAccountLookup, err)
		}
		return s.policy.Free(acct, model.DecisionOwner, now), nil
	}

	var (
		outcome repository.UnlockOutcome
		acct    *model.AccessAccount
	)
	err = s.retryOnce(ctx, "consume_view", func() error {
		var err error
		outcome, acct, err = s.repo.ConsumeView(ctx, userID, resourceID, anchor, s.policy.BaseMonthlyAllowance)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Str("resource_id", resourceID).
			Msg("Failed to consume view")
		return locked, s.wrapStoreErr(err)
	}

	switch outcome {
	case repository.UnlockAlreadyViewed:
		return s.policy.Free(acct, model.DecisionPreviouslyViewed, now), nil
	case repository.UnlockSpent:
		decision := s.policy.Decide(acct, true, now)
		s.publish(ctx, AccessEvent{
			Type:           EventResourceUnlocked,
			UserID:         userID,
			ResourceID:     resourceID,
			MonthYear:      model.MonthKey(anchor),
			ViewsThisMonth: decision.ViewsThisMonth,
			MaxViews:       decision.MaxViewsThisMonth,
			OccurredAt:     now,
		})
		return decision, nil
	default:
		s.logger.Debug().
			Str("user_id", userID).
			Str("resource_id", resourceID).
			Int("views_this_month", acct.ViewsConsumed).
			Msg("Monthly view limit reached")
		return s.policy.Decide(acct, false, now), nil
	}
}

func (s *accessService) GrantBonusForUpload(ctx context.Context, userID string) (model.AccessInfo, error) {
	return s.grant(ctx, userID, model.GrantReasonUpload, s.policy.UploadBonusViews)
}

func (s *accessService) GrantBonusForAdWatch(ctx context.Context, userID string) (model.AccessInfo, error) {
	return s.grant(ctx, userID, model.GrantReasonAdWatch, s.policy.AdBonusViews)
}

func (s *accessService) grant(ctx context.Context, userID string, reason model.GrantReason, magnitude int) (model.AccessInfo, error) {
	now := s.now()
	anchor := s.policy.MonthAnchor(now)

	var acct *model.AccessAccount
	err := s.retryOnce(ctx, "grant_"+string(reason), func() error {
		var err error
		acct, err = s.repo.AddGrant(ctx, userID, anchor, reason, magnitude, s.policy.MaxAdWatches)
		return err
	})
	if errors.Is(err, repository.ErrAdWatchCapReached) && acct != nil {
		s.logger.Info().
			Str("user_id", userID).
			Int("ad_watches", acct.AdWatches).
			Msg("Ad watch cap reached, grant ignored")
		return s.info(acct, now), nil
	}
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Str("reason", string(reason)).
			Msg("Failed to record bonus grant")
		return model.AccessInfo{}, s.wrapStoreErr(err)
	}

	info := s.info(acct, now)
	s.publish(ctx, AccessEvent{
		Type:           EventBonusGranted,
		UserID:         userID,
		MonthYear:      model.MonthKey(anchor),
		Reason:         reason,
		Magnitude:      magnitude,
		ViewsThisMonth: info.ViewsThisMonth,
		MaxViews:       info.MaxViewsThisMonth,
		OccurredAt:     now,
	})
	return info, nil
}

func (s *accessService) HasViewed(ctx context.Context, userID, resourceID string) (bool, error) {
	viewed, err := s.repo.HasViewed(ctx, userID, resourceID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrAccountLookup, err)
	}
	return viewed, nil
}

func (s *accessService) GetAccessInfo(ctx context.Context, userID string) (model.AccessInfo, error) {
	now := s.now()
	acct, err := s.repo.GetOrCreateAccount(ctx, userID, s.policy.MonthAnchor(now))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load access account")
		return model.AccessInfo{}, fmt.Errorf("%w: %w", ErrAccountLookup, err)
	}
	return s.info(acct, now), nil
}

func (s *accessService) ListViewedResources(ctx context.Context, userID string, limit, offset int) ([]model.ViewedResource, error) {
	viewed, err := s.repo.ListViewedResources(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAccountLookup, err)
	}
	return viewed, nil
}

func (s *accessService) info(acct *model.AccessAccount, now time.Time) model.AccessInfo {
	info := s.policy.Info(acct, now)
	if !s.policy.Enabled {
		info.CanView = true
		info.RequiresAction = false
		info.ActionOptions = []model.ActionOption{}
	}
	return info
}

// retryOnce runs op again if the store reports a lost race.
func (s *accessService) retryOnce(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if !errors.Is(err, repository.ErrConcurrentUpdate) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	s.logger.Warn().Err(err).Str("operation", op).Msg("Concurrent update on access account, retrying once")
	return fn()
}

func (s *accessService) wrapStoreErr(err error) error {
	if errors.Is(err, repository.ErrConcurrentUpdate) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrAccountLookup, err)
}

func (s *accessService) publish(ctx context.Context, ev AccessEvent) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", ev.Type).Msg("Failed to marshal access event")
		return
	}
	attrs := map[string]string{"event_type": ev.Type, "user_id": ev.UserID}
	if _, err := s.publisher.Publish(ctx, s.topic, payload, attrs); err != nil {
		s.logger.Warn().Err(err).Str("event_type", ev.Type).Msg("Failed to publish access event")
	}
}
