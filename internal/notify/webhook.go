// Package notify delivers the terminal notification of a quiz session to an automation webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/telemetry"
)

const (
	defaultTimeout = 10 * time.Second
	invokePath     = "/generic-webhook-trigger/invoke"
)

type Config struct {
	EventBus *event.Bus
	// URL is the base URL of the automation server. An empty URL disables delivery.
	URL     string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

// Webhook posts the winner of a session to a generic webhook trigger endpoint.
// Deliveries are attempted once, failures are logged and never retried.
type Webhook struct {
	endpoint string
	client   *http.Client
	wg       sync.WaitGroup
}

type payload struct {
	Name string `json:"name"`
}

func NewWebhook(c Config) (*Webhook, error) {
	w := &Webhook{client: c.Client}

	if c.URL != "" {
		u, err := url.Parse(strings.TrimRight(c.URL, "/") + invokePath)
		if err != nil {
			return nil, fmt.Errorf("notify: parse webhook URL: %w", err)
		}
		if c.Token != "" {
			u.RawQuery = url.Values{"token": []string{c.Token}}.Encode()
		}
		w.endpoint = u.String()
	}

	if w.client == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		w.client = &http.Client{Timeout: timeout}
	}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameQuizEnded, func(ctx context.Context, e event.Event) error {
			ended := e.(domain.EventQuizEnded)
			w.DeliverAsync(ctx, ended.SessionID, ended.Winner)
			return nil
		})
	}

	return w, nil
}

// Deliver notifies the webhook and logs the outcome. It never returns an error to the caller.
func (w *Webhook) Deliver(ctx context.Context, sessionID, winner string) {
	err := w.Notify(ctx, winner)
	switch {
	case err == nil:
		telemetry.WebhookDeliveries.WithLabelValues("ok").Inc()
		slog.InfoContext(ctx, "notify: webhook delivered", "session", sessionID, "winner", winner)
	case errors.Is(err, errDisabled):
		telemetry.WebhookDeliveries.WithLabelValues("disabled").Inc()
		slog.DebugContext(ctx, "notify: webhook disabled", "session", sessionID)
	default:
		telemetry.WebhookDeliveries.WithLabelValues("failed").Inc()
		slog.ErrorContext(ctx, "notify: webhook delivery failed", "session", sessionID, "error", err)
	}
}

// DeliverAsync runs Deliver in the background so the caller, usually the room queue of a
// session, is not held by a slow webhook.
func (w *Webhook) DeliverAsync(ctx context.Context, sessionID, winner string) {
	ctx = context.WithoutCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.Deliver(ctx, sessionID, winner)
	}()
}

// Wait blocks until every background delivery has finished.
func (w *Webhook) Wait() {
	w.wg.Wait()
}

var errDisabled = errors.New("notify: webhook disabled")

// Notify posts the winner name to the webhook.
func (w *Webhook) Notify(ctx context.Context, winner string) error {
	if w.endpoint == "" {
		return errDisabled
	}

	if winner == "" {
		winner = domain.NoWinner
	}

	b, err := json.Marshal(payload{Name: winner})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post webhook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
