// Package whatsapp is the raw transport client for the WhatsApp Cloud API
// wire format described in spec §6: POST {base}/{version}/{phone_number_id}/messages
// with a bearer token.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ngoclaw/orchestrator/pkg/apperrors"
)

const defaultTimeout = 10 * time.Second

// Client issues outbound text messages against the WhatsApp Cloud API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
	token      string
}

func New(baseURL, apiVersion, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiVersion: apiVersion,
		token:      token,
	}
}

type outboundPayload struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             outboundBody `json:"text"`
}

type outboundBody struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText posts a text message to a lead's phone number through the
// integration identified by phoneNumberID. Returns the provider's message
// id on success.
func (c *Client) SendText(ctx context.Context, phoneNumberID, toPhone, text string) (string, error) {
	payload := outboundPayload{
		MessagingProduct: "whatsapp",
		To:               toPhone,
		Type:             "text",
		Text:             outboundBody{Body: text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "marshal outbound payload", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.TransientTransportError("whatsapp send request failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return "", apperrors.TransientTransportError(fmt.Sprintf("whatsapp server error %d", resp.StatusCode), fmt.Errorf("%s", raw))
	}
	if resp.StatusCode >= 400 {
		return "", apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("whatsapp rejected send (%d)", resp.StatusCode), fmt.Errorf("%s", raw))
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperrors.Wrap(apperrors.CodeTransport, "parse whatsapp response", err)
	}
	if len(parsed.Messages) == 0 {
		return "", apperrors.New(apperrors.CodeTransport, "whatsapp response had no message id")
	}
	return parsed.Messages[0].ID, nil
}
