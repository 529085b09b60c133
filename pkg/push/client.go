// Package push delivers mobile push notifications through the Expo push API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/feiralivre/marketplace-backend/pkg/config"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
)

// Message is a single push notification addressed to one device token.
type Message struct {
	To    string         `json:"to"`
	Title string         `json:"title,omitempty"`
	Body  string         `json:"body,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
	Sound string         `json:"sound,omitempty"`
}

type ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

type sendResponse struct {
	Data []ticket `json:"data"`
}

// Sender is the delivery surface the notification dispatcher depends on.
type Sender interface {
	Send(ctx context.Context, msgs []Message) error
}

// Client talks to the Expo push gateway.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func New(cfg config.PushConfig) *Client {
	return &Client{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Send posts the batch and surfaces per-ticket rejections as a single error.
// Expo accepts up to 100 messages per request; callers batch accordingly.
func (c *Client) Send(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	body, err := json.Marshal(msgs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding push batch")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building push request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sending push batch")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pkgerrors.Newf(pkgerrors.CodeDependency, "push gateway returned %d: %s", resp.StatusCode, snippet)
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding push response")
	}
	rejected := 0
	for _, t := range decoded.Data {
		if t.Status != "" && t.Status != "ok" {
			rejected++
		}
	}
	if rejected > 0 {
		return pkgerrors.Newf(pkgerrors.CodeDependency, "push gateway rejected %d of %d messages", rejected, len(decoded.Data))
	}
	return nil
}
