package entity

import (
	"fmt"
	"time"
)

// Message is append-only: once recorded it is never mutated (spec §3).
type Message struct {
	id             MessageID
	conversationID ConversationID
	sender         Sender
	direction      Direction
	text           string
	providerMsgID  string // set for inbound messages, empty for bot/human-authored ones
	createdAt      time.Time
}

func NewMessage(id MessageID, conversationID ConversationID, sender Sender, direction Direction, text string, at time.Time) (*Message, error) {
	if text == "" {
		return nil, fmt.Errorf("message text must not be empty")
	}
	return &Message{
		id:             id,
		conversationID: conversationID,
		sender:         sender,
		direction:      direction,
		text:           text,
		createdAt:      at,
	}, nil
}

// WithProviderMsgID tags an inbound message with the transport's dedup key.
func (m *Message) WithProviderMsgID(providerMsgID string) *Message {
	m.providerMsgID = providerMsgID
	return m
}

func (m *Message) ID() MessageID                  { return m.id }
func (m *Message) ConversationID() ConversationID { return m.conversationID }
func (m *Message) Sender() Sender                 { return m.sender }
func (m *Message) Direction() Direction           { return m.direction }
func (m *Message) Text() string                   { return m.text }
func (m *Message) ProviderMsgID() string          { return m.providerMsgID }
func (m *Message) CreatedAt() time.Time           { return m.createdAt }

func HydrateMessage(id MessageID, conversationID ConversationID, sender Sender, direction Direction, text, providerMsgID string, createdAt time.Time) *Message {
	return &Message{
		id: id, conversationID: conversationID, sender: sender, direction: direction,
		text: text, providerMsgID: providerMsgID, createdAt: createdAt,
	}
}
