// Package notify implements the external NotificationService collaborator
// (spec §6): deliver an EscalationNotification to a human via a desktop
// toast (where supported) and/or an outgoing webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-toast/toast"

	"github.com/apmas/apmas/internal/types"
)

// ToastNotifier raises a desktop toast notification. Like the teacher's
// notifier, it is a no-op with an explicit error off Windows rather than
// silently succeeding.
type ToastNotifier struct {
	appID       string
	dashboardURL string
}

// NewToastNotifier constructs a ToastNotifier. dashboardURL, if set,
// becomes the toast's "open dashboard" action target.
func NewToastNotifier(appID, dashboardURL string) *ToastNotifier {
	if appID == "" {
		appID = "apmas"
	}
	return &ToastNotifier{appID: appID, dashboardURL: dashboardURL}
}

// Notify implements supervisor.NotificationService.
func (t *ToastNotifier) Notify(ctx context.Context, n types.EscalationNotification) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("toast notifications only supported on Windows")
	}

	notification := toast.Notification{
		AppID:   t.appID,
		Title:   fmt.Sprintf("%s escalated", n.Role),
		Message: n.LastError,
		Audio:   toast.IM,
	}
	if t.dashboardURL != "" {
		notification.Actions = []toast.Action{
			{Type: "protocol", Label: "Open Dashboard", Arguments: t.dashboardURL},
		}
	}
	return notification.Push()
}

// WebhookNotifier posts an EscalationNotification as JSON to a configured
// URL (e.g. a Slack incoming webhook), grounded on the teacher's
// SlackNotifier payload shape.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier constructs a WebhookNotifier posting to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

// Notify implements supervisor.NotificationService.
func (w *WebhookNotifier) Notify(ctx context.Context, n types.EscalationNotification) error {
	if w.url == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	payload := map[string]interface{}{
		"text": fmt.Sprintf("Agent %s escalated after %d retries", n.Role, n.FailureCount),
		"attachments": []map[string]interface{}{
			{
				"color": "danger",
				"title": fmt.Sprintf("%s escalated", n.Role),
				"fields": []map[string]interface{}{
					{"title": "Last error", "value": n.LastError, "short": false},
					{"title": "Artifacts", "value": fmt.Sprintf("%v", n.Artifacts), "short": false},
				},
				"ts": n.Timestamp.Unix(),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Multi fans a notification out to several NotificationServices,
// collecting (not short-circuiting on) the first error.
type Multi struct {
	notifiers []notifier
}

type notifier interface {
	Notify(ctx context.Context, n types.EscalationNotification) error
}

// NewMulti constructs a Multi that notifies through every given notifier.
func NewMulti(notifiers ...notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Notify implements supervisor.NotificationService. It calls every
// configured notifier and returns the first error encountered, if any,
// after all have been attempted.
func (m *Multi) Notify(ctx context.Context, n types.EscalationNotification) error {
	var firstErr error
	for _, notif := range m.notifiers {
		if err := notif.Notify(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
