// Package dispatch implements the Outbound Dispatcher (spec §4.G): resolves
// the organization's sending integration and sends the text through the
// transport, without retrying. It does not record the message (the
// orchestrator appends it before calling Send); a transport error is
// returned unchanged, and the orchestrator maps it to needs_human_attention.
package dispatch

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"github.com/ngoclaw/orchestrator/internal/domain/orchestrator"
	"github.com/ngoclaw/orchestrator/internal/domain/repository"
	"github.com/ngoclaw/orchestrator/pkg/apperrors"
)

// Transport is the narrow outbound wire boundary — satisfied by
// internal/infrastructure/transport/whatsapp.Client.
type Transport interface {
	SendText(ctx context.Context, phoneNumberID, toPhone, text string) (providerMessageID string, err error)
}

// Sender implements orchestrator.Sender against a real transport client.
type Sender struct {
	transport    Transport
	conversations repository.ConversationRepository
	logger       *zap.Logger
}

func New(transport Transport, conversations repository.ConversationRepository, logger *zap.Logger) *Sender {
	return &Sender{transport: transport, conversations: conversations, logger: logger}
}

func (s *Sender) Send(ctx context.Context, conv *entity.Conversation, lead *entity.Lead, text string) (orchestrator.Receipt, error) {
	integration, err := s.conversations.GetIntegrationForOrg(ctx, conv.OrgID())
	if err != nil {
		return orchestrator.Receipt{}, apperrors.Wrap(apperrors.CodeTransport, "resolve sending integration", err)
	}

	providerMsgID, err := s.transport.SendText(ctx, integration.PhoneNumberID(), lead.Phone(), text)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			s.logger.Warn("outbound dispatch failed",
				zap.String("conversation_id", conv.ID().String()),
				zap.String("code", string(appErr.Code)),
				zap.Error(err),
			)
		}
		return orchestrator.Receipt{}, err
	}

	return orchestrator.Receipt{ProviderMessageID: providerMsgID}, nil
}
