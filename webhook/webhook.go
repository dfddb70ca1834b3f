package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// EventRunCompleted is sent once per finished section.
const EventRunCompleted = "run.completed"

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Qaharvest-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string      `json:"type"`
	Section   string      `json:"section"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, section string, data interface{}) *Event {
	return &Event{Type: eventType, Section: section, Timestamp: time.Now().Unix(), Data: data}
}

// Notifier posts events to one endpoint with retries.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
}

// NewNotifier returns a Notifier, or nil when url is empty. A nil Notifier
// ignores Notify calls.
func NewNotifier(url, secret string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, time.Second, 5 * time.Second},
	}
}

// Notify delivers event, retrying after each delay. It blocks until the
// event is delivered, every attempt failed, or ctx is done, so a process
// that exits right after a run still reports it.
func (n *Notifier) Notify(ctx context.Context, event *Event) error {
	if n == nil {
		return nil
	}
	var lastErr error
	for attempt, delay := range n.delays {
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		err := Deliver(ctx, n.client, n.url, n.secret, event)
		if err == nil {
			slog.Info("webhook delivered",
				"url", n.url,
				"event", event.Type,
				"section", event.Section,
				"attempt", attempt+1,
			)
			return nil
		}
		lastErr = err
		slog.Warn("webhook delivery failed",
			"url", n.url,
			"event", event.Type,
			"section", event.Section,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries",
		"url", n.url,
		"event", event.Type,
		"section", event.Section,
	)
	return lastErr
}

// Deliver sends one webhook event.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, client *http.Client, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Qaharvest-Webhook/1.0")

	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
