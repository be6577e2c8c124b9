package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"studyshare/internal/database"
	"studyshare/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skip Postgres integration test")
	}
	ctx := context.Background()
	pool, err := database.Connect(ctx, dsn, "development")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func TestClassify(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "23505"} {
		err := classify(&pgconn.PgError{Code: code})
		if !errors.Is(err, ErrConcurrentUpdate) {
			t.Errorf("code %s not classified as concurrent update", code)
		}
	}
	if err := classify(&pgconn.PgError{Code: "42P01"}); errors.Is(err, ErrConcurrentUpdate) {
		t.Error("undefined_table must not be classified as concurrent update")
	}
	plain := errors.New("boom")
	if classify(plain) != plain {
		t.Error("non-Postgres errors pass through unchanged")
	}
}

func TestPostgresConsumeViewAndGrants(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewAccessRepo(pool)
	user := uuid.NewString()

	acct, err := repo.GetOrCreateAccount(ctx, user, may)
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	if acct.ViewsConsumed != 0 || len(acct.BonusGrants) != 0 {
		t.Fatalf("fresh account = %+v", acct)
	}

	r1, r2 := uuid.NewString(), uuid.NewString()
	if outcome, _, err := repo.ConsumeView(ctx, user, r1, may, 1); err != nil || outcome != UnlockSpent {
		t.Fatalf("first unlock = %s, %v", outcome, err)
	}
	if outcome, _, err := repo.ConsumeView(ctx, user, r1, may, 1); err != nil || outcome != UnlockAlreadyViewed {
		t.Fatalf("re-view = %s, %v", outcome, err)
	}
	if outcome, _, err := repo.ConsumeView(ctx, user, r2, may, 1); err != nil || outcome != UnlockExhausted {
		t.Fatalf("over limit = %s, %v", outcome, err)
	}

	if _, err := repo.AddGrant(ctx, user, may, model.GrantReasonAdWatch, 3, 1); err != nil {
		t.Fatalf("ad grant: %v", err)
	}
	if _, err := repo.AddGrant(ctx, user, may, model.GrantReasonAdWatch, 3, 1); !errors.Is(err, ErrAdWatchCapReached) {
		t.Fatalf("second ad grant err = %v", err)
	}

	outcome, acct, err := repo.ConsumeView(ctx, user, r2, may, 1)
	if err != nil || outcome != UnlockSpent {
		t.Fatalf("unlock after grant = %s, %v", outcome, err)
	}
	if acct.ViewsConsumed != 2 || acct.AdWatches != 1 || acct.MaxViews(1) != 4 {
		t.Errorf("account = %+v", acct)
	}

	viewed, err := repo.ListViewedResources(ctx, user, 10, 0)
	if err != nil || len(viewed) != 2 {
		t.Fatalf("ListViewedResources = %v, %v", viewed, err)
	}
}

func TestPostgresConcurrentConsume(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewAccessRepo(pool)
	user := uuid.NewString()
	const allowance = 3

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		spent int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, _, err := repo.ConsumeView(ctx, user, uuid.NewString(), may, allowance)
			if err != nil && !errors.Is(err, ErrConcurrentUpdate) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if outcome == UnlockSpent {
				mu.Lock()
				spent++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	acct, err := repo.GetOrCreateAccount(ctx, user, may)
	if err != nil {
		t.Fatal(err)
	}
	if acct.ViewsConsumed != spent || spent > allowance {
		t.Errorf("views = %d, spent = %d, allowance %d", acct.ViewsConsumed, spent, allowance)
	}
}
