// Package orchestrator drives the per-conversation state machine: every
// inbound user message passes through HandleUserMessage and every fired
// timer through HandleTimerFire, which run the LLM Pipeline, apply its
// decision, and dispatch a reply (spec §4.F).
package orchestrator

import (
	"sync"
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"go.uber.org/zap"
)

const laneIdleTTL = 2 * time.Minute

// lane is one conversation's serial inbox: a buffered-channel goroutine
// that runs jobs one at a time, so a UserMessage and a TimerFire for the
// same conversation can never execute concurrently — generalized from the
// teacher's websocket.Hub register/unregister goroutine-per-connection
// pattern, from connections to conversations.
type lane struct {
	inbox      chan func()
	lastActive time.Time
}

// laneRegistry creates lanes lazily and evicts idle ones.
type laneRegistry struct {
	mu     sync.Mutex
	lanes  map[entity.ConversationID]*lane
	logger *zap.Logger
}

func newLaneRegistry(logger *zap.Logger) *laneRegistry {
	r := &laneRegistry{lanes: make(map[entity.ConversationID]*lane), logger: logger}
	go r.evictIdleLoop()
	return r
}

// submit runs fn on conv's serial lane, creating the lane if needed, and
// blocks the caller until fn has finished so HandleUserMessage/
// HandleTimerFire can return the job's result synchronously.
func (r *laneRegistry) submit(conv entity.ConversationID, fn func()) {
	l := r.getOrCreate(conv)
	done := make(chan struct{})
	l.inbox <- func() {
		defer close(done)
		fn()
	}
	<-done
}

func (r *laneRegistry) getOrCreate(conv entity.ConversationID) *lane {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.lanes[conv]; ok {
		l.lastActive = time.Now()
		return l
	}

	l := &lane{inbox: make(chan func(), 16), lastActive: time.Now()}
	r.lanes[conv] = l
	go func() {
		for job := range l.inbox {
			job()
		}
	}()
	return l
}

func (r *laneRegistry) evictIdleLoop() {
	ticker := time.NewTicker(laneIdleTTL)
	defer ticker.Stop()
	for range ticker.C {
		r.evictIdle()
	}
}

func (r *laneRegistry) evictIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, l := range r.lanes {
		if now.Sub(l.lastActive) > laneIdleTTL {
			close(l.inbox)
			delete(r.lanes, id)
		}
	}
}
