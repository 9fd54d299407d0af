package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"go.uber.org/zap"
)

// fakeActionRepo is a minimal in-package repository.ScheduledActionRepository
// fake, kept local to this test file (rather than testsupport) so the
// scheduler package's tests never import a package that imports scheduler
// back, avoiding any import-cycle risk in the test build.
type fakeActionRepo struct {
	mu      sync.Mutex
	actions map[entity.ScheduledID]*entity.ScheduledAction
	deleted []entity.ScheduledID
}

func newFakeActionRepo() *fakeActionRepo {
	return &fakeActionRepo{actions: make(map[entity.ScheduledID]*entity.ScheduledAction)}
}

func (f *fakeActionRepo) CreateScheduledAction(ctx context.Context, conv entity.ConversationID, kind entity.ActionKind, fireAt, createdAt time.Time, reason string, payload map[string]any) (*entity.ScheduledAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := entity.NewScheduledAction(entity.NewScheduledID(), conv, kind, fireAt, createdAt, reason, payload)
	f.actions[a.ID()] = a
	return a, nil
}

func (f *fakeActionRepo) CancelPendingActions(ctx context.Context, conv entity.ConversationID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, a := range f.actions {
		if a.ConversationID() == conv {
			delete(f.actions, id)
			count++
		}
	}
	return count, nil
}

func (f *fakeActionRepo) ClaimDueActions(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*entity.ScheduledAction
	for id, a := range f.actions {
		if !a.FireAt().After(now) {
			due = append(due, a)
			delete(f.actions, id)
			if len(due) >= limit {
				break
			}
		}
	}
	return due, nil
}

func (f *fakeActionRepo) DeleteScheduledAction(ctx context.Context, id entity.ScheduledID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.actions, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeActionRepo) CountPending(ctx context.Context, conv entity.ConversationID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.actions {
		if a.ConversationID() == conv {
			count++
		}
	}
	return count, nil
}

func (f *fakeActionRepo) seed(a *entity.ScheduledAction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions[a.ID()] = a
}

// fakeHandler records every TimerFire it's asked to handle.
type fakeHandler struct {
	mu   sync.Mutex
	seen []entity.ScheduledID
}

func (h *fakeHandler) HandleTimerFire(ctx context.Context, action *entity.ScheduledAction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, action.ID())
	return nil
}

func (h *fakeHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func TestPoller_FiresDueActions(t *testing.T) {
	repo := newFakeActionRepo()
	handler := &fakeHandler{}
	poller := NewPoller(repo, handler, nil, 20*time.Millisecond, 10, zap.NewNop())

	convID := entity.NewConversationID()
	due := entity.NewScheduledAction(entity.NewScheduledID(), convID, entity.ActionKindFollowup, time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(-time.Hour), "ladder step 1 of 3", nil)
	repo.seed(due)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if handler.count() >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if handler.count() != 1 {
		t.Fatalf("expected handler to fire once, got %d", handler.count())
	}
}

func TestPoller_QuietHoursSuppressesFiring(t *testing.T) {
	repo := newFakeActionRepo()
	handler := &fakeHandler{}
	// A window that allows firing only from 09:00 to 09:01, so Allowed is
	// false at every instant checked outside that minute.
	qh, err := NewQuietHours("0 9 * * *", "1 9 * * *")
	if err != nil {
		t.Fatal(err)
	}
	poller := NewPoller(repo, handler, qh, 20*time.Millisecond, 10, zap.NewNop())

	convID := entity.NewConversationID()
	due := entity.NewScheduledAction(entity.NewScheduledID(), convID, entity.ActionKindFollowup, time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(-time.Hour), "ladder step 1 of 3", nil)
	repo.seed(due)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	time.Sleep(150 * time.Millisecond)

	if time.Now().Hour() >= 9 && time.Now().Hour() < 10 {
		t.Skip("test window overlaps the configured quiet-hours firing window")
	}
	if handler.count() != 0 {
		t.Errorf("expected no firing with quiet hours active outside the window, got %d", handler.count())
	}
}
