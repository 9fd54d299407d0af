package scheduler

import (
	"context"
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"github.com/ngoclaw/orchestrator/internal/domain/repository"
	"go.uber.org/zap"
)

// TimerFireHandler is implemented by the orchestrator. Kept as a narrow
// interface here (rather than importing the orchestrator package) so the
// scheduler has no dependency on orchestration logic — grounded on the
// teacher's CronService.executor callback injection.
type TimerFireHandler interface {
	HandleTimerFire(ctx context.Context, action *entity.ScheduledAction) error
}

// Poller is a ticker-driven background worker that claims due
// ScheduledActions and re-enters the orchestrator as a synthetic TimerFire
// event — generalized from the teacher's CronService.scheduleLoop (a
// 1-minute ticker) down to a few-second poll interval appropriate for a
// 10-minute-granularity ladder.
type Poller struct {
	repo        repository.ScheduledActionRepository
	handler     TimerFireHandler
	quietHours  *QuietHours
	interval    time.Duration
	claimLimit  int
	logger      *zap.Logger

	cancel context.CancelFunc
}

func NewPoller(repo repository.ScheduledActionRepository, handler TimerFireHandler, quietHours *QuietHours, interval time.Duration, claimLimit int, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if claimLimit <= 0 {
		claimLimit = 50
	}
	return &Poller{repo: repo, handler: handler, quietHours: quietHours, interval: interval, claimLimit: claimLimit, logger: logger}
}

// Start begins the poll loop in a background goroutine. Stop it by
// cancelling ctx or by calling Stop.
func (p *Poller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.loop(ctx)
}

func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.pollOnce(ctx, now)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context, now time.Time) {
	if !p.quietHours.Allowed(now) {
		return
	}

	actions, err := p.repo.ClaimDueActions(ctx, now, p.claimLimit)
	if err != nil {
		p.logger.Error("claim due actions failed", zap.Error(err))
		return
	}

	for _, action := range actions {
		go p.fire(ctx, action)
	}
}

func (p *Poller) fire(ctx context.Context, action *entity.ScheduledAction) {
	if err := p.handler.HandleTimerFire(ctx, action); err != nil {
		p.logger.Error("timer fire handling failed",
			zap.String("action_id", action.ID().String()),
			zap.String("conversation_id", action.ConversationID().String()),
			zap.Error(err),
		)
	}
}
