package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/pkg/encrypt"
	"gorm.io/gorm"
)

// Notifier informs the notification collaborator about review outcomes and
// new issues. Implementations are fire-and-forget: callers invoke them in
// goroutines after commit and a delivery failure never rolls anything back.
type Notifier interface {
	NotifyCheckpointCreated(ctx context.Context, e CheckpointCreatedEvent) error
	NotifyCheckpointReviewed(ctx context.Context, e CheckpointReviewedEvent) error
	NotifyIssueCreated(ctx context.Context, e IssueCreatedEvent) error
	NotifyIssueStatusChanged(ctx context.Context, e IssueStatusChangedEvent) error
}

// NoopNotifier is used when no webhook is configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyCheckpointCreated(context.Context, CheckpointCreatedEvent) error { return nil }
func (NoopNotifier) NotifyCheckpointReviewed(context.Context, CheckpointReviewedEvent) error {
	return nil
}
func (NoopNotifier) NotifyIssueCreated(context.Context, IssueCreatedEvent) error             { return nil }
func (NoopNotifier) NotifyIssueStatusChanged(context.Context, IssueStatusChangedEvent) error { return nil }

// WebhookNotifier posts JSON envelopes to a project-level webhook when one is
// configured, falling back to the global endpoint. Project webhook tokens are
// stored AES-encrypted and decrypted on the way out.
type WebhookNotifier struct {
	db         *gorm.DB
	aesKey     string
	defaultURL string
	token      string
	client     *http.Client
}

func NewWebhookNotifier(db *gorm.DB, aesKey, defaultURL, token string) *WebhookNotifier {
	return &WebhookNotifier{
		db:         db,
		aesKey:     aesKey,
		defaultURL: defaultURL,
		token:      token,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) NotifyCheckpointCreated(ctx context.Context, e CheckpointCreatedEvent) error {
	return n.send(ctx, e.ProjectID, "checkpoint.created", e)
}

func (n *WebhookNotifier) NotifyCheckpointReviewed(ctx context.Context, e CheckpointReviewedEvent) error {
	return n.send(ctx, e.ProjectID, "checkpoint.reviewed", e)
}

func (n *WebhookNotifier) NotifyIssueCreated(ctx context.Context, e IssueCreatedEvent) error {
	return n.send(ctx, e.ProjectID, "issue.created", e)
}

func (n *WebhookNotifier) NotifyIssueStatusChanged(ctx context.Context, e IssueStatusChangedEvent) error {
	return n.send(ctx, e.ProjectID, "issue.status_changed", e)
}

type envelope struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func (n *WebhookNotifier) send(ctx context.Context, projectID uint, event string, data interface{}) error {
	url, token := n.resolveEndpoint(projectID)
	if url == "" {
		return nil
	}

	body, err := json.Marshal(envelope{Event: event, Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("[notify] webhook %s failed: %v", event, err)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("[notify] webhook %s returned %d", event, resp.StatusCode)
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) resolveEndpoint(projectID uint) (string, string) {
	if projectID != 0 {
		var p model.Project
		if err := n.db.First(&p, projectID).Error; err == nil && p.WebhookURL != "" {
			token := ""
			if p.WebhookToken != "" {
				if t, err := encrypt.AESDecrypt(n.aesKey, p.WebhookToken); err == nil {
					token = t
				}
			}
			return p.WebhookURL, token
		}
	}
	return n.defaultURL, n.token
}

var _ Notifier = (*WebhookNotifier)(nil)
