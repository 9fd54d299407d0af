// Package testsupport provides in-memory fakes for the domain ports, used
// by orchestrator and dispatch tests so they can run without a real
// database, LLM provider, or transport.
package testsupport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"github.com/ngoclaw/orchestrator/internal/domain/orchestrator"
	"github.com/ngoclaw/orchestrator/internal/domain/pipeline"
)

// FakeConversationRepository is an in-memory repository.ConversationRepository.
type FakeConversationRepository struct {
	mu            sync.Mutex
	Integrations  map[string]*entity.Integration
	Leads         map[entity.LeadID]*entity.Lead
	Conversations map[entity.ConversationID]*entity.Conversation
	Messages      map[entity.ConversationID][]*entity.Message
}

func NewFakeConversationRepository() *FakeConversationRepository {
	return &FakeConversationRepository{
		Integrations:  make(map[string]*entity.Integration),
		Leads:         make(map[entity.LeadID]*entity.Lead),
		Conversations: make(map[entity.ConversationID]*entity.Conversation),
		Messages:      make(map[entity.ConversationID][]*entity.Message),
	}
}

func (f *FakeConversationRepository) ResolveIntegration(ctx context.Context, phoneNumberID string) (*entity.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Integrations[phoneNumberID], nil
}

func (f *FakeConversationRepository) GetIntegrationForOrg(ctx context.Context, orgID entity.OrganizationID) (*entity.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, in := range f.Integrations {
		if in.OrgID() == orgID {
			return in, nil
		}
	}
	return nil, fmt.Errorf("no integration for org %s", orgID)
}

func (f *FakeConversationRepository) UpsertLead(ctx context.Context, orgID entity.OrganizationID, phone, name string) (*entity.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.Leads {
		if l.Phone() == phone {
			return l, nil
		}
	}
	lead := entity.NewLead(entity.NewLeadID(), orgID, phone, name)
	f.Leads[lead.ID()] = lead
	return lead, nil
}

func (f *FakeConversationRepository) GetLead(ctx context.Context, id entity.LeadID) (*entity.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Leads[id], nil
}

func (f *FakeConversationRepository) GetOrCreateConversation(ctx context.Context, orgID entity.OrganizationID, leadID entity.LeadID) (*entity.Conversation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Conversations {
		if c.OrgID() == orgID && c.LeadID() == leadID {
			return c, false, nil
		}
	}
	conv := entity.NewConversation(entity.NewConversationID(), orgID, leadID)
	f.Conversations[conv.ID()] = conv
	return conv, true, nil
}

func (f *FakeConversationRepository) UpdateConversation(ctx context.Context, id entity.ConversationID, patch entity.Patch) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.Conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s not found", id)
	}
	if err := conv.ApplyPatch(patch); err != nil {
		return conv, err
	}
	return conv, nil
}

func (f *FakeConversationRepository) GetConversation(ctx context.Context, id entity.ConversationID) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Conversations[id], nil
}

func (f *FakeConversationRepository) AppendMessage(ctx context.Context, conv entity.ConversationID, sender entity.Sender, direction entity.Direction, text string, at time.Time) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, err := entity.NewMessage(entity.NewMessageID(), conv, sender, direction, text, at)
	if err != nil {
		return nil, err
	}
	f.Messages[conv] = append(f.Messages[conv], msg)
	return msg, nil
}

func (f *FakeConversationRepository) ListRecentMessages(ctx context.Context, conv entity.ConversationID, n int) ([]*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.Messages[conv]
	if len(all) <= n {
		return all, nil
	}
	return all[len(all)-n:], nil
}

// FakeScheduledActionRepository is an in-memory repository.ScheduledActionRepository.
type FakeScheduledActionRepository struct {
	mu      sync.Mutex
	Actions map[entity.ScheduledID]*entity.ScheduledAction
}

func NewFakeScheduledActionRepository() *FakeScheduledActionRepository {
	return &FakeScheduledActionRepository{Actions: make(map[entity.ScheduledID]*entity.ScheduledAction)}
}

func (f *FakeScheduledActionRepository) CreateScheduledAction(ctx context.Context, conv entity.ConversationID, kind entity.ActionKind, fireAt, createdAt time.Time, reason string, payload map[string]any) (*entity.ScheduledAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := entity.NewScheduledAction(entity.NewScheduledID(), conv, kind, fireAt, createdAt, reason, payload)
	f.Actions[a.ID()] = a
	return a, nil
}

func (f *FakeScheduledActionRepository) CancelPendingActions(ctx context.Context, conv entity.ConversationID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, a := range f.Actions {
		if a.ConversationID() == conv && a.Status() == entity.ActionPending {
			delete(f.Actions, id)
			count++
		}
	}
	return count, nil
}

func (f *FakeScheduledActionRepository) ClaimDueActions(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*entity.ScheduledAction
	for _, a := range f.Actions {
		if a.Status() == entity.ActionPending && !a.FireAt().After(now) {
			due = append(due, a)
			if len(due) >= limit {
				break
			}
		}
	}
	return due, nil
}

func (f *FakeScheduledActionRepository) DeleteScheduledAction(ctx context.Context, id entity.ScheduledID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Actions, id)
	return nil
}

// SeedScheduledAction inserts a pre-built action directly, bypassing
// CreateScheduledAction, so tests can control createdAt precisely (e.g. to
// construct a stale timer).
func (f *FakeScheduledActionRepository) SeedScheduledAction(a *entity.ScheduledAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Actions[a.ID()] = a
	return nil
}

// Get returns the action for id, or an error if it no longer exists.
func (f *FakeScheduledActionRepository) Get(id entity.ScheduledID) (*entity.ScheduledAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.Actions[id]
	if !ok {
		return nil, fmt.Errorf("scheduled action %s not found", id)
	}
	return a, nil
}

func (f *FakeScheduledActionRepository) CountPending(ctx context.Context, conv entity.ConversationID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.Actions {
		if a.ConversationID() == conv && a.Status() == entity.ActionPending {
			count++
		}
	}
	return count, nil
}

// FakeSender records every outbound send instead of calling a real transport.
type FakeSender struct {
	mu   sync.Mutex
	Sent []string
	Err  error
}

func (f *FakeSender) Send(ctx context.Context, conv *entity.Conversation, lead *entity.Lead, text string) (orchestrator.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return orchestrator.Receipt{}, f.Err
	}
	f.Sent = append(f.Sent, text)
	return orchestrator.Receipt{ProviderMessageID: "fake-msg-id"}, nil
}

// FakeEventPublisher discards every event; tests assert on side effects
// elsewhere (repository state, Sender.Sent).
type FakeEventPublisher struct{}

func (FakeEventPublisher) PublishMessageCreated(ctx context.Context, conv *entity.Conversation, msg *entity.Message) {
}
func (FakeEventPublisher) PublishConversationUpdated(ctx context.Context, conv *entity.Conversation) {
}
func (FakeEventPublisher) PublishAttentionRaised(ctx context.Context, conv *entity.Conversation, reason string) {
}
func (FakeEventPublisher) PublishAttentionResolved(ctx context.Context, conv *entity.Conversation) {
}

// FakeProvider returns a scripted RawCompletion per call, in order, so
// tests can drive specific Classify/Generate/Summarize outcomes.
type FakeProvider struct {
	mu        sync.Mutex
	Responses []pipeline.RawCompletion
	Errs      []error
	calls     int
}

func (f *FakeProvider) Complete(ctx context.Context, prompt pipeline.Prompt) (pipeline.RawCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	var err error
	if i < len(f.Errs) {
		err = f.Errs[i]
	}
	if i < len(f.Responses) {
		return f.Responses[i], err
	}
	return pipeline.RawCompletion{}, err
}

// CallCount reports how many times Complete has been invoked.
func (f *FakeProvider) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
