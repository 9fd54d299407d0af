//go:build integration

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/config"
)

// newTestDB starts a disposable Postgres container and returns a
// connection through the same NewDBConnection path production uses, so
// AutoMigrate and the dialector selection are exercised exactly as in
// cmd/orchestratord.
func newTestDB(t *testing.T) *GormScheduledActionRepository {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orchestrator_test"),
		postgres.WithUsername("orchestrator"),
		postgres.WithPassword("orchestrator"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	db, err := NewDBConnection(&config.DatabaseConfig{Type: "postgres", DSN: dsn})
	if err != nil {
		t.Fatalf("NewDBConnection: %v", err)
	}

	return NewGormScheduledActionRepository(db).(*GormScheduledActionRepository)
}

// TestClaimDueActions_ConcurrentPollersClaimDisjointSets exercises the
// invariant the UPDATE ... WHERE status='PENDING' claim statement exists
// for: two pollers racing ClaimDueActions against the same due row must
// never both win it.
func TestClaimDueActions_ConcurrentPollersClaimDisjointSets(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	conv := entity.NewConversationID()
	due := time.Now().UTC().Add(-time.Minute)
	createdAt := time.Now().UTC().Add(-time.Hour)

	const n = 20
	for i := 0; i < n; i++ {
		if _, err := repo.CreateScheduledAction(ctx, conv, entity.ActionKindFollowup, due, createdAt, "ladder step", nil); err != nil {
			t.Fatalf("CreateScheduledAction: %v", err)
		}
	}

	results := make(chan []*entity.ScheduledAction, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			claimed, err := repo.ClaimDueActions(ctx, time.Now().UTC(), n)
			if err != nil {
				errs <- err
				return
			}
			results <- claimed
		}()
	}

	seen := make(map[string]bool)
	total := 0
	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			t.Fatalf("ClaimDueActions: %v", err)
		case claimed := <-results:
			for _, a := range claimed {
				if seen[a.ID().String()] {
					t.Fatalf("action %s claimed by more than one poller", a.ID())
				}
				seen[a.ID().String()] = true
				total++
			}
		}
	}

	if total != n {
		t.Errorf("total claimed = %d, want %d (every due action claimed exactly once)", total, n)
	}
}

func TestCancelPendingActions_OnlyTouchesPendingRows(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	conv := entity.NewConversationID()
	due := time.Now().UTC().Add(-time.Minute)
	createdAt := time.Now().UTC().Add(-time.Hour)

	if _, err := repo.CreateScheduledAction(ctx, conv, entity.ActionKindFollowup, due, createdAt, "ladder step 1", nil); err != nil {
		t.Fatalf("CreateScheduledAction: %v", err)
	}
	if _, err := repo.CreateScheduledAction(ctx, conv, entity.ActionKindFollowup, due, createdAt, "ladder step 2", nil); err != nil {
		t.Fatalf("CreateScheduledAction: %v", err)
	}

	if _, err := repo.ClaimDueActions(ctx, time.Now().UTC(), 1); err != nil {
		t.Fatalf("ClaimDueActions: %v", err)
	}

	cancelled, err := repo.CancelPendingActions(ctx, conv)
	if err != nil {
		t.Fatalf("CancelPendingActions: %v", err)
	}
	if cancelled != 1 {
		t.Errorf("cancelled = %d, want 1 (the still-pending row, not the claimed one)", cancelled)
	}
}
