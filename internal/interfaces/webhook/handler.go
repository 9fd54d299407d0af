// Package webhook is the Transport Gateway (spec §4.A): the inbound HTTP
// surface that receives the provider's webhook calls and hands parsed
// orchestrator.UserMessage values to the orchestrator through a bounded
// worker pool.
package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngoclaw/orchestrator/internal/domain/orchestrator"
	"github.com/ngoclaw/orchestrator/pkg/apperrors"
)

const dedupeTTL = 24 * time.Hour

// UserMessageHandler is the narrow slice of orchestrator.Orchestrator the
// gateway needs — kept local so this package has no concrete dependency
// on the orchestrator's full constructor surface.
type UserMessageHandler interface {
	HandleUserMessage(ctx context.Context, msg orchestrator.UserMessage) error
}

// Handler wires gin routes for the webhook challenge and inbound delivery.
type Handler struct {
	verifyToken string
	handler     UserMessageHandler
	dedupe      DedupeStore
	logger      *zap.Logger

	queue chan orchestrator.UserMessage
}

// NewHandler builds a Handler with a bounded work queue serviced by
// workerCount goroutines — grounded on the teacher's InMemoryBus
// dispatch-loop pattern, generalized from event fan-out to inbound work.
func NewHandler(verifyToken string, handler UserMessageHandler, dedupe DedupeStore, logger *zap.Logger, queueSize, workerCount int) *Handler {
	h := &Handler{
		verifyToken: verifyToken,
		handler:     handler,
		dedupe:      dedupe,
		logger:      logger,
		queue:       make(chan orchestrator.UserMessage, queueSize),
	}
	for i := 0; i < workerCount; i++ {
		go h.worker()
	}
	return h
}

func (h *Handler) worker() {
	for msg := range h.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := h.handler.HandleUserMessage(ctx, msg); err != nil {
			h.logger.Error("inbound message handling failed",
				zap.String("phone_number_id", msg.PhoneNumberID),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Register mounts the two webhook routes on engine.
func (h *Handler) Register(engine *gin.Engine, path string) {
	engine.GET(path, h.Verify)
	engine.POST(path, h.Receive)
}

// Verify answers the provider's subscription challenge.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken && challenge != "" {
		c.String(http.StatusOK, challenge)
		return
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
}

type envelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					ID   string `json:"id"`
					From string `json:"from"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Timestamp string `json:"timestamp"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Receive parses the provider envelope and enqueues one
// orchestrator.UserMessage per message. Transient errors (e.g. a downstream dependency outage) return a
// 5xx so the provider retries; malformed payloads are dropped with a 200
// since the provider must never retry something that will never parse
// (spec §4.A).
func (h *Handler) Receive(c *gin.Context) {
	var body envelope
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Warn("dropping malformed webhook payload", zap.Error(apperrors.MalformedPayloadError("parse envelope", err)))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	for _, entry := range body.Entry {
		for _, change := range entry.Changes {
			phoneNumberID := change.Value.Metadata.PhoneNumberID
			senderName := ""
			if len(change.Value.Contacts) > 0 {
				senderName = change.Value.Contacts[0].Profile.Name
			}

			for _, m := range change.Value.Messages {
				if m.Text.Body == "" {
					continue
				}

				seen, err := h.dedupe.SeenBefore(c.Request.Context(), m.ID, dedupeTTL)
				if err != nil {
					c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dedupe store unavailable"})
					return
				}
				if seen {
					continue
				}

				msg := orchestrator.UserMessage{
					PhoneNumberID: phoneNumberID,
					From:          m.From,
					FromName:      senderName,
					Text:          m.Text.Body,
					At:            time.Now().UTC(),
				}

				select {
				case h.queue <- msg:
				default:
					h.logger.Error("inbound work queue full, dropping message", zap.String("provider_msg_id", m.ID))
					c.JSON(http.StatusServiceUnavailable, gin.H{"error": "inbound queue saturated"})
					return
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
