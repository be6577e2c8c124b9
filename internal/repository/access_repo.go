package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studyshare/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAdWatchCapReached is returned when an ad-watch grant would exceed the monthly cap.
	ErrAdWatchCapReached = errors.New("ad_watch_cap_reached")
	// ErrConcurrentUpdate is returned when a concurrent transaction on the same account won the race.
	ErrConcurrentUpdate = errors.New("concurrent_update_conflict")
)

// UnlockOutcome describes what ConsumeView did.
type UnlockOutcome string

const (
	UnlockSpent         UnlockOutcome = "spent"
	UnlockAlreadyViewed UnlockOutcome = "already_viewed"
	UnlockExhausted     UnlockOutcome = "exhausted"
)

// AccessRepository stores monthly access accounts, bonus grants and the viewed-resources set.
type AccessRepository interface {
	// GetOrCreateAccount returns the account for the month starting at anchor, creating an empty one if needed.
	GetOrCreateAccount(ctx context.Context, userID string, anchor time.Time) (*model.AccessAccount, error)
	// ConsumeView atomically unlocks resourceID for userID if the month still has capacity.
	// Returns the account as it stands after the operation.
	ConsumeView(ctx context.Context, userID, resourceID string, anchor time.Time, baseAllowance int) (UnlockOutcome, *model.AccessAccount, error)
	// AddGrant records a bonus grant. Ad-watch grants fail with ErrAdWatchCapReached at maxAdWatches.
	AddGrant(ctx context.Context, userID string, anchor time.Time, reason model.GrantReason, magnitude, maxAdWatches int) (*model.AccessAccount, error)
	HasViewed(ctx context.Context, userID, resourceID string) (bool, error)
	ListViewedResources(ctx context.Context, userID string, limit, offset int) ([]model.ViewedResource, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type accessRepo struct {
	pool *pgxpool.Pool
}

// NewAccessRepo creates a Postgres-backed AccessRepository.
func NewAccessRepo(pool *pgxpool.Pool) AccessRepository {
	return &accessRepo{pool: pool}
}

const (
	ensureAccountQ = `
		INSERT INTO monthly_view_limits (user_id, month_year)
		VALUES ($1, $2)
		ON CONFLICT (user_id, month_year) DO NOTHING
	`
	selectAccountQ = `
		SELECT views_used, ads_watched, created_at, updated_at
		FROM monthly_view_limits
		WHERE user_id = $1
		  AND month_year = $2
	`
	selectGrantsQ = `
		SELECT id, reason, magnitude, created_at
		FROM access_bonus_grants
		WHERE user_id = $1
		  AND month_year = $2
		ORDER BY created_at, id
	`
	hasViewedQ = `
		SELECT EXISTS (
			SELECT 1 FROM viewed_resources WHERE user_id = $1 AND resource_id = $2
		)
	`
)

// GetOrCreateAccount lazily materialises the month's account row.
func (r *accessRepo) GetOrCreateAccount(ctx context.Context, userID string, anchor time.Time) (*model.AccessAccount, error) {
	key := model.MonthKey(anchor)
	if _, err := r.pool.Exec(ctx, ensureAccountQ, userID, key); err != nil {
		return nil, fmt.Errorf("creating access account for user %s (%s): %w", userID, key, classify(err))
	}
	acct, err := loadAccount(ctx, r.pool, userID, anchor, false)
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// ConsumeView runs the unlock as one serializable transaction holding the account row lock.
func (r *accessRepo) ConsumeView(ctx context.Context, userID, resourceID string, anchor time.Time, baseAllowance int) (UnlockOutcome, *model.AccessAccount, error) {
	key := model.MonthKey(anchor)
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return "", nil, fmt.Errorf("starting transaction for view unlock: %w", classify(err))
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, ensureAccountQ, userID, key); err != nil {
		return "", nil, fmt.Errorf("creating access account for user %s (%s): %w", userID, key, classify(err))
	}
	acct, err := loadAccount(ctx, tx, userID, anchor, true)
	if err != nil {
		return "", nil, err
	}

	var viewed bool
	if err := tx.QueryRow(ctx, hasViewedQ, userID, resourceID).Scan(&viewed); err != nil {
		return "", nil, fmt.Errorf("checking viewed resource %s for user %s: %w", resourceID, userID, classify(err))
	}
	if viewed {
		return UnlockAlreadyViewed, acct, nil
	}
	if acct.ViewsConsumed >= acct.MaxViews(baseAllowance) {
		return UnlockExhausted, acct, nil
	}

	const insertViewedQ = `
		INSERT INTO viewed_resources (user_id, resource_id, month_year)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, resource_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insertViewedQ, userID, resourceID, key)
	if err != nil {
		return "", nil, fmt.Errorf("recording viewed resource %s for user %s: %w", resourceID, userID, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return UnlockAlreadyViewed, acct, nil
	}

	const incrementQ = `
		UPDATE monthly_view_limits
		SET views_used = views_used + 1,
		    updated_at = NOW()
		WHERE user_id = $1
		  AND month_year = $2
		RETURNING views_used, updated_at
	`
	if err := tx.QueryRow(ctx, incrementQ, userID, key).Scan(&acct.ViewsConsumed, &acct.UpdatedAt); err != nil {
		return "", nil, fmt.Errorf("incrementing views for user %s (%s): %w", userID, key, classify(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return "", nil, fmt.Errorf("committing view unlock for user %s: %w", userID, classify(err))
	}
	return UnlockSpent, acct, nil
}

// AddGrant appends a bonus grant under the account row lock.
func (r *accessRepo) AddGrant(ctx context.Context, userID string, anchor time.Time, reason model.GrantReason, magnitude, maxAdWatches int) (*model.AccessAccount, error) {
	key := model.MonthKey(anchor)
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("starting transaction for %s grant: %w", reason, classify(err))
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, ensureAccountQ, userID, key); err != nil {
		return nil, fmt.Errorf("creating access account for user %s (%s): %w", userID, key, classify(err))
	}
	acct, err := loadAccount(ctx, tx, userID, anchor, true)
	if err != nil {
		return nil, err
	}
	if reason == model.GrantReasonAdWatch && acct.AdWatches >= maxAdWatches {
		return acct, ErrAdWatchCapReached
	}

	grant := model.BonusGrant{
		ID:        uuid.NewString(),
		UserID:    userID,
		MonthKey:  key,
		Reason:    reason,
		Magnitude: magnitude,
	}
	const insertGrantQ = `
		INSERT INTO access_bonus_grants (id, user_id, month_year, reason, magnitude)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, insertGrantQ, grant.ID, userID, key, string(reason), magnitude).Scan(&grant.CreatedAt); err != nil {
		return nil, fmt.Errorf("recording %s grant for user %s: %w", reason, userID, classify(err))
	}

	if reason == model.GrantReasonAdWatch {
		const bumpAdsQ = `
			UPDATE monthly_view_limits
			SET ads_watched = ads_watched + 1,
			    updated_at = NOW()
			WHERE user_id = $1
			  AND month_year = $2
			RETURNING ads_watched, updated_at
		`
		if err := tx.QueryRow(ctx, bumpAdsQ, userID, key).Scan(&acct.AdWatches, &acct.UpdatedAt); err != nil {
			return nil, fmt.Errorf("incrementing ad watches for user %s (%s): %w", userID, key, classify(err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing %s grant for user %s: %w", reason, userID, classify(err))
	}
	acct.BonusGrants = append(acct.BonusGrants, grant)
	return acct, nil
}

// HasViewed reports whether userID has ever unlocked resourceID.
func (r *accessRepo) HasViewed(ctx context.Context, userID, resourceID string) (bool, error) {
	var viewed bool
	if err := r.pool.QueryRow(ctx, hasViewedQ, userID, resourceID).Scan(&viewed); err != nil {
		return false, fmt.Errorf("checking viewed resource %s for user %s: %w", resourceID, userID, err)
	}
	return viewed, nil
}

// ListViewedResources returns the user's unlocks, newest first.
func (r *accessRepo) ListViewedResources(ctx context.Context, userID string, limit, offset int) ([]model.ViewedResource, error) {
	const q = `
		SELECT user_id, resource_id, month_year, unlocked_at
		FROM viewed_resources
		WHERE user_id = $1
		ORDER BY unlocked_at DESC, resource_id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing viewed resources for user %s: %w", userID, err)
	}
	viewed, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ViewedResource, error) {
		var v model.ViewedResource
		err := row.Scan(&v.UserID, &v.ResourceID, &v.MonthKey, &v.UnlockedAt)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning viewed resources for user %s: %w", userID, err)
	}
	return viewed, nil
}

func loadAccount(ctx context.Context, q querier, userID string, anchor time.Time, forUpdate bool) (*model.AccessAccount, error) {
	key := model.MonthKey(anchor)
	acct := &model.AccessAccount{UserID: userID, MonthAnchor: anchor}

	query := selectAccountQ
	if forUpdate {
		query += " FOR UPDATE"
	}
	if err := q.QueryRow(ctx, query, userID, key).Scan(
		&acct.ViewsConsumed,
		&acct.AdWatches,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("fetch access account for user %s (%s): %w", userID, key, classify(err))
	}

	rows, err := q.Query(ctx, selectGrantsQ, userID, key)
	if err != nil {
		return nil, fmt.Errorf("fetch bonus grants for user %s (%s): %w", userID, key, classify(err))
	}
	grants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BonusGrant, error) {
		g := model.BonusGrant{UserID: userID, MonthKey: key}
		var reason string
		if err := row.Scan(&g.ID, &reason, &g.Magnitude, &g.CreatedAt); err != nil {
			return g, err
		}
		g.Reason = model.GrantReason(reason)
		return g, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan bonus grants for user %s (%s): %w", userID, key, classify(err))
	}
	acct.BonusGrants = grants
	return acct, nil
}

// classify maps Postgres conflict codes onto ErrConcurrentUpdate.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return errors.Join(ErrConcurrentUpdate, err)
		}
	}
	return err
}
