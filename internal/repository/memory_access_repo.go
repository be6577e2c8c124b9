package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"studyshare/internal/model"

	"github.com/google/uuid"
)

type accountKey struct {
	userID string
	month  string
}

type viewKey struct {
	userID     string
	resourceID string
}

// MemoryAccessRepo keeps accounts in process memory. One mutex serialises every
// mutation, which gives the same all-or-nothing unlock as the Postgres transaction.
type MemoryAccessRepo struct {
	mu       sync.RWMutex
	accounts map[accountKey]*model.AccessAccount
	viewed   map[viewKey]model.ViewedResource
	nowFunc  func() time.Time
}

func NewMemoryAccessRepo() *MemoryAccessRepo {
	return &MemoryAccessRepo{
		accounts: make(map[accountKey]*model.AccessAccount),
		viewed:   make(map[viewKey]model.ViewedResource),
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the clock used for created/unlocked timestamps.
func (r *MemoryAccessRepo) SetNowFunc(f func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nowFunc = f
}

func (r *MemoryAccessRepo) GetOrCreateAccount(_ context.Context, userID string, anchor time.Time) (*model.AccessAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyAccount(r.ensure(userID, anchor)), nil
}

func (r *MemoryAccessRepo) ConsumeView(_ context.Context, userID, resourceID string, anchor time.Time, baseAllowance int) (UnlockOutcome, *model.AccessAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct := r.ensure(userID, anchor)
	vk := viewKey{userID: userID, resourceID: resourceID}
	if _, ok := r.viewed[vk]; ok {
		return UnlockAlreadyViewed, copyAccount(acct), nil
	}
	if acct.ViewsConsumed >= acct.MaxViews(baseAllowance) {
		return UnlockExhausted, copyAccount(acct), nil
	}

	now := r.nowFunc()
	r.viewed[vk] = model.ViewedResource{
		UserID:     userID,
		ResourceID: resourceID,
		MonthKey:   model.MonthKey(anchor),
		UnlockedAt: now,
	}
	acct.ViewsConsumed++
	acct.UpdatedAt = now
	return UnlockSpent, copyAccount(acct), nil
}

func (r *MemoryAccessRepo) AddGrant(_ context.Context, userID string, anchor time.Time, reason model.GrantReason, magnitude, maxAdWatches int) (*model.AccessAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct := r.ensure(userID, anchor)
	if reason == model.GrantReasonAdWatch && acct.AdWatches >= maxAdWatches {
		return copyAccount(acct), ErrAdWatchCapReached
	}

	now := r.nowFunc()
	acct.BonusGrants = append(acct.BonusGrants, model.BonusGrant{
		ID:        uuid.NewString(),
		UserID:    userID,
		MonthKey:  model.MonthKey(anchor),
		Reason:    reason,
		Magnitude: magnitude,
		CreatedAt: now,
	})
	if reason == model.GrantReasonAdWatch {
		acct.AdWatches++
	}
	acct.UpdatedAt = now
	return copyAccount(acct), nil
}

func (r *MemoryAccessRepo) HasViewed(_ context.Context, userID, resourceID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.viewed[viewKey{userID: userID, resourceID: resourceID}]
	return ok, nil
}

func (r *MemoryAccessRepo) ListViewedResources(_ context.Context, userID string, limit, offset int) ([]model.ViewedResource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.ViewedResource
	for k, v := range r.viewed {
		if k.userID == userID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].UnlockedAt.After(out[j].UnlockedAt)
		}
		return out[i].ResourceID < out[j].ResourceID
	})
	if offset >= len(out) {
		return []model.ViewedResource{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// ensure must be called with mu held.
func (r *MemoryAccessRepo) ensure(userID string, anchor time.Time) *model.AccessAccount {
	k := accountKey{userID: userID, month: model.MonthKey(anchor)}
	acct, ok := r.accounts[k]
	if !ok {
		now := r.nowFunc()
		acct = &model.AccessAccount{
			UserID:      userID,
			MonthAnchor: anchor,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		r.accounts[k] = acct
	}
	return acct
}

func copyAccount(a *model.AccessAccount) *model.AccessAccount {
	c := *a
	c.BonusGrants = append([]model.BonusGrant(nil), a.BonusGrants...)
	return &c
}
