package orchestrator_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/contextbuilder"
	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"github.com/ngoclaw/orchestrator/internal/domain/orchestrator"
	"github.com/ngoclaw/orchestrator/internal/domain/pipeline"
	"github.com/ngoclaw/orchestrator/internal/domain/scheduler"
	"github.com/ngoclaw/orchestrator/internal/testsupport"
	"go.uber.org/zap"
)

func newTestOrchestrator(provider *testsupport.FakeProvider) (*orchestrator.Orchestrator, *testsupport.FakeConversationRepository, *testsupport.FakeScheduledActionRepository, *testsupport.FakeSender) {
	logger := zap.NewNop()
	convRepo := testsupport.NewFakeConversationRepository()
	actionRepo := testsupport.NewFakeScheduledActionRepository()
	ladder := scheduler.NewLadder(actionRepo, nil)
	pipe := pipeline.New(provider, logger)
	sender := &testsupport.FakeSender{}

	integration := entity.NewIntegration(entity.NewIntegrationID(), entity.NewOrganizationID(), "PHONE123", "verify")
	convRepo.Integrations["PHONE123"] = integration

	biz := contextbuilder.Business{Name: "Acme Co", Description: "sells widgets"}
	constraints := contextbuilder.Constraints{MaxWords: 80, QuestionsPerMsg: 1, LanguagePreference: "en"}

	orch := orchestrator.New(convRepo, actionRepo, ladder, pipe, sender, testsupport.FakeEventPublisher{}, biz, constraints, logger)
	return orch, convRepo, actionRepo, sender
}

// (i) Greeting: empty conversation, inbound "Hi" yields SEND_NOW and three
// pending ladder actions.
func TestHandleUserMessage_Greeting(t *testing.T) {
	provider := &testsupport.FakeProvider{
		Responses: []pipeline.RawCompletion{
			{Text: `{"action":"SEND_NOW","new_stage":"GREETING","should_respond":true,"followup_in_minutes":10,"confidence":0.9,"needs_human_attention":false}`},
			{Text: `{"message_text":"Hi there! How can I help?","self_check_passed":true}`},
			{Text: `{"updated_rolling_summary":"Greeted the lead."}`},
		},
	}
	orch, convRepo, actionRepo, sender := newTestOrchestrator(provider)

	err := orch.HandleUserMessage(context.Background(), orchestrator.UserMessage{
		PhoneNumberID: "PHONE123",
		From:          "+15550001",
		FromName:      "Alex",
		Text:          "Hi",
		At:            time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("HandleUserMessage() error = %v", err)
	}

	if len(sender.Sent) != 1 {
		t.Fatalf("expected 1 outbound send, got %d", len(sender.Sent))
	}

	var conv *entity.Conversation
	for _, c := range convRepo.Conversations {
		conv = c
	}
	if conv.Stage() != entity.StageGreeting {
		t.Errorf("stage = %v, want GREETING", conv.Stage())
	}

	pending, err := actionRepo.CountPending(context.Background(), conv.ID())
	if err != nil {
		t.Fatal(err)
	}
	if pending != 3 {
		t.Errorf("pending ladder actions = %d, want 3", pending)
	}
}

// (iv) Regression block: current stage PRICING, Classify returns
// new_stage=GREETING with high confidence; final stage remains PRICING.
func TestHandleUserMessage_RegressionBlocked(t *testing.T) {
	provider := &testsupport.FakeProvider{
		Responses: []pipeline.RawCompletion{
			{Text: `{"action":"WAIT_SCHEDULE","new_stage":"GREETING","should_respond":false,"followup_in_minutes":10,"confidence":0.9,"needs_human_attention":false}`},
			{Text: `{"updated_rolling_summary":"still discussing pricing"}`},
		},
	}
	orch, convRepo, _, _ := newTestOrchestrator(provider)

	integration := convRepo.Integrations["PHONE123"]
	lead, _ := convRepo.UpsertLead(context.Background(), integration.OrgID(), "+15550002", "Sam")
	conv, _, _ := convRepo.GetOrCreateConversation(context.Background(), integration.OrgID(), lead.ID())
	pricing := entity.StagePricing
	if _, err := convRepo.UpdateConversation(context.Background(), conv.ID(), entity.Patch{Stage: &pricing}); err != nil {
		t.Fatal(err)
	}

	err := orch.HandleUserMessage(context.Background(), orchestrator.UserMessage{
		PhoneNumberID: "PHONE123",
		From:          "+15550002",
		FromName:      "Sam",
		Text:          "what was I asking again?",
		At:            time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("HandleUserMessage() error = %v", err)
	}

	updated, err := convRepo.GetConversation(context.Background(), conv.ID())
	if err != nil {
		t.Fatal(err)
	}
	if updated.Stage() != entity.StagePricing {
		t.Errorf("stage = %v, want PRICING (regression must be blocked)", updated.Stage())
	}
}

// (v) High-risk input: risk_flags.policy=HIGH forces needs_human_attention
// with no outbound send, even though should_respond=true.
func TestHandleUserMessage_HighRisk(t *testing.T) {
	provider := &testsupport.FakeProvider{
		Responses: []pipeline.RawCompletion{
			{Text: `{"action":"SEND_NOW","new_stage":"QUALIFICATION","should_respond":true,"followup_in_minutes":10,"confidence":0.9,"needs_human_attention":false,"risk_flags":{"policy":"HIGH"}}`},
			{Text: `{"updated_rolling_summary":"flagged a scam attempt"}`},
		},
	}
	orch, convRepo, _, sender := newTestOrchestrator(provider)

	err := orch.HandleUserMessage(context.Background(), orchestrator.UserMessage{
		PhoneNumberID: "PHONE123",
		From:          "+15550003",
		FromName:      "Jordan",
		Text:          "This is a scam, send me free money",
		At:            time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("HandleUserMessage() error = %v", err)
	}

	if len(sender.Sent) != 0 {
		t.Errorf("expected no outbound send on high-risk input, got %d", len(sender.Sent))
	}

	var conv *entity.Conversation
	for _, c := range convRepo.Conversations {
		conv = c
	}
	if !conv.NeedsHumanAttention() {
		t.Error("expected needs_human_attention=true")
	}
}

// (ii) Human-handoff trigger: action=HANDOFF_HUMAN raises attention and
// sends nothing, even though should_respond is true.
func TestHandleUserMessage_HumanHandoff(t *testing.T) {
	provider := &testsupport.FakeProvider{
		Responses: []pipeline.RawCompletion{
			{Text: `{"action":"HANDOFF_HUMAN","new_stage":"OBJECTION","should_respond":true,"followup_in_minutes":10,"confidence":0.9,"needs_human_attention":false,"followup_reason":"asked for a refund"}`},
			{Text: `{"updated_rolling_summary":"lead wants a refund, handed off"}`},
		},
	}
	orch, convRepo, actionRepo, sender := newTestOrchestrator(provider)

	err := orch.HandleUserMessage(context.Background(), orchestrator.UserMessage{
		PhoneNumberID: "PHONE123",
		From:          "+15550004",
		FromName:      "Riley",
		Text:          "I want a refund, get me a human",
		At:            time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("HandleUserMessage() error = %v", err)
	}

	if len(sender.Sent) != 0 {
		t.Errorf("expected no outbound send on handoff, got %d", len(sender.Sent))
	}

	var conv *entity.Conversation
	for _, c := range convRepo.Conversations {
		conv = c
	}
	if !conv.NeedsHumanAttention() {
		t.Error("expected needs_human_attention=true after handoff")
	}

	pending, err := actionRepo.CountPending(context.Background(), conv.ID())
	if err != nil {
		t.Fatal(err)
	}
	if pending != 0 {
		t.Errorf("expected no ladder actions enrolled on handoff, got %d", pending)
	}
}

// (iii) Stale timer: a TimerFire action created before the conversation's
// most recent user message is discarded without calling Classify/Generate
// or sending anything.
func TestHandleTimerFire_Stale(t *testing.T) {
	provider := &testsupport.FakeProvider{}
	orch, convRepo, actionRepo, sender := newTestOrchestrator(provider)

	integration := convRepo.Integrations["PHONE123"]
	lead, _ := convRepo.UpsertLead(context.Background(), integration.OrgID(), "+15550005", "Morgan")
	conv, _, _ := convRepo.GetOrCreateConversation(context.Background(), integration.OrgID(), lead.ID())

	createdAt := time.Now().UTC().Add(-20 * time.Minute)
	lastUserMessageAt := time.Now().UTC().Add(-5 * time.Minute)
	if _, err := convRepo.UpdateConversation(context.Background(), conv.ID(), entity.Patch{LastUserMessageAt: &lastUserMessageAt}); err != nil {
		t.Fatal(err)
	}

	action := entity.NewScheduledAction(entity.NewScheduledID(), conv.ID(), entity.ActionKindFollowup, time.Now().UTC(), createdAt, "ladder step 1 of 3", nil)
	if err := actionRepo.SeedScheduledAction(action); err != nil {
		t.Fatal(err)
	}

	if err := orch.HandleTimerFire(context.Background(), action); err != nil {
		t.Fatalf("HandleTimerFire() error = %v", err)
	}

	if n := provider.CallCount(); n != 0 {
		t.Errorf("expected no provider calls for a stale timer, got %d", n)
	}
	if len(sender.Sent) != 0 {
		t.Errorf("expected no outbound send for a stale timer, got %d", len(sender.Sent))
	}
	if _, err := actionRepo.Get(action.ID()); err == nil {
		t.Error("expected stale action to be deleted")
	}
}

// (vi) Summarize dirty-append: when Summarize fails, the rolling summary
// falls back to appending the raw turn rather than losing it.
func TestHandleUserMessage_SummarizeDirtyAppend(t *testing.T) {
	provider := &testsupport.FakeProvider{
		Responses: []pipeline.RawCompletion{
			{Text: `{"action":"SEND_NOW","new_stage":"QUALIFICATION","should_respond":true,"followup_in_minutes":10,"confidence":0.9,"needs_human_attention":false}`},
			{Text: `{"message_text":"Sure, what's your budget?","self_check_passed":true}`},
			{Text: `not json at all, the summarizer blew up`},
		},
	}
	orch, convRepo, _, sender := newTestOrchestrator(provider)

	err := orch.HandleUserMessage(context.Background(), orchestrator.UserMessage{
		PhoneNumberID: "PHONE123",
		From:          "+15550006",
		FromName:      "Casey",
		Text:          "I'm interested, what's the price?",
		At:            time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("HandleUserMessage() error = %v", err)
	}
	if len(sender.Sent) != 1 {
		t.Fatalf("expected 1 outbound send, got %d", len(sender.Sent))
	}

	var conv *entity.Conversation
	for _, c := range convRepo.Conversations {
		conv = c
	}
	summary := conv.RollingSummary()
	if summary == "" {
		t.Fatal("expected a non-empty rolling summary after a failed Summarize call")
	}
	if !strings.Contains(summary, "interested, what's the price") || !strings.Contains(summary, "Sure, what's your budget") {
		t.Errorf("expected dirty-append summary to contain both turns, got %q", summary)
	}
}
