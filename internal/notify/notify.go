// Package notify delivers queued notifications to the user-facing channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"saintagent/internal/logging"
	"saintagent/internal/store"
)

// Notifier delivers one notification. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, userID int64, body string) error
}

// HTTPNotifier posts notifications as JSON to a webhook endpoint.
type HTTPNotifier struct {
	Endpoint   string
	httpClient *http.Client
}

// NewHTTPNotifier creates a webhook notifier.
func NewHTTPNotifier(endpoint string, timeout time.Duration) *HTTPNotifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotifier{
		Endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, userID int64, body string) error {
	payload, err := json.Marshal(map[string]any{
		"user_id": userID,
		"message": body,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("deliver notification: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when no endpoint is
// configured, so queued notifications still drain.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID int64, body string) error {
	logging.Scheduler("notification for user %d: %s", userID, body)
	return nil
}

// Dispatcher drains the notification outbox through a Notifier. Delivery
// failures leave the row queued for the next drain, so delivery is
// at-least-once.
type Dispatcher struct {
	st       *store.Store
	notifier Notifier
	batch    int
}

// NewDispatcher creates an outbox dispatcher.
func NewDispatcher(st *store.Store, notifier Notifier) *Dispatcher {
	return &Dispatcher{st: st, notifier: notifier, batch: 50}
}

// Drain delivers pending notifications and returns how many went out.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	pending, err := d.st.PendingNotifications(d.batch)
	if err != nil {
		return 0, err
	}

	var sent int
	for _, n := range pending {
		if err := d.notifier.Notify(ctx, n.UserID, n.Body); err != nil {
			logging.Get(logging.CategoryScheduler).Warn("notification %d delivery failed: %v", n.ID, err)
			continue
		}
		if err := d.st.MarkDispatched(n.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
