// Package notify fans an event out to its audience: one persisted
// Notification record per recipient, plus a best-effort push through the
// delivery worker pool.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campus-guardian-backend/internal/model"
	"campus-guardian-backend/internal/store"
)

// Notifier is the contract the session and incident managers depend on.
type Notifier interface {
	Notify(ctx context.Context, kind model.NotificationKind, recipientIDs []string, senderID string, payload any) ([]string, error)
}

// Dispatcher hands persisted notifications to a delivery transport.
// Satisfied by *WorkerPool.
type Dispatcher interface {
	Dispatch(notificationID string)
}

// Fanout persists notification records and signals the delivery pool.
// Delivery failure never rolls back a persisted record: the in-app inbox
// has at-least-once semantics, the push channel is best-effort.
type Fanout struct {
	store store.Store
	pool  Dispatcher
	log   *zap.Logger
}

// NewFanout creates a fanout over the given store and delivery pool.
func NewFanout(s store.Store, pool Dispatcher, log *zap.Logger) *Fanout {
	return &Fanout{store: s, pool: pool, log: log}
}

// Notify persists one record per recipient and queues each for delivery.
// Recipient ids are opaque; audience resolution happened upstream.
func (f *Fanout) Notify(ctx context.Context, kind model.NotificationKind, recipientIDs []string, senderID string, payload any) ([]string, error) {
	if len(recipientIDs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}

	now := time.Now().UTC()
	notes := make([]model.Notification, len(recipientIDs))
	for i, recipientID := range recipientIDs {
		notes[i] = model.Notification{
			ID:          uuid.NewString(),
			RecipientID: recipientID,
			SenderID:    senderID,
			Kind:        kind,
			Payload:     string(body),
			CreatedAt:   now,
		}
	}

	if err := f.store.CreateNotifications(ctx, notes); err != nil {
		return nil, fmt.Errorf("failed to persist %s notifications: %w", kind, err)
	}

	ids := make([]string, len(notes))
	for i, note := range notes {
		ids[i] = note.ID
		f.pool.Dispatch(note.ID)
	}

	f.log.Debug("fanout complete",
		zap.String("kind", string(kind)),
		zap.Int("recipients", len(recipientIDs)))
	return ids, nil
}

// MarkRead flips the read receipt on one of the recipient's records.
func (f *Fanout) MarkRead(ctx context.Context, id, recipientID string) error {
	return f.store.MarkNotificationRead(ctx, id, recipientID)
}

// Inbox returns a recipient's notifications, newest first.
func (f *Fanout) Inbox(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error) {
	return f.store.ListNotifications(ctx, recipientID, unreadOnly)
}
