package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"campus-guardian-backend/internal/model"
	"campus-guardian-backend/internal/store"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// pushEnvelope is what the client's service worker receives.
type pushEnvelope struct {
	Kind      model.NotificationKind `json:"kind"`
	Payload   json.RawMessage        `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// WorkerPool delivers persisted notifications over web push off the
// request path. Delivery is best-effort: a full queue drops the job and
// the in-app record stays untouched either way.
type WorkerPool struct {
	size    int
	jobs    chan string // notification ids
	store   store.Store
	webpush *webpush.Options
	sender  Sender
	log     *zap.Logger
}

// NewWorkerPool creates a new delivery worker pool.
func NewWorkerPool(size, queueSize int, s store.Store, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, queueSize),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// SetSender swaps the delivery transport. Used by tests.
func (wp *WorkerPool) SetSender(s Sender) { wp.sender = s }

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("delivery worker started", zap.Int("worker", id))
	for {
		select {
		case noteID := <-wp.jobs:
			wp.deliver(ctx, noteID)
		case <-ctx.Done():
			wp.log.Debug("delivery worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a notification for delivery. Never blocks the caller:
// when the queue is full the push is dropped and only logged — the inbox
// record already exists.
func (wp *WorkerPool) Dispatch(notificationID string) {
	select {
	case wp.jobs <- notificationID:
	default:
		wp.log.Warn("delivery queue full, dropping push", zap.String("notification", notificationID))
	}
}

// deliver sends one notification to every subscription of its recipient.
func (wp *WorkerPool) deliver(ctx context.Context, notificationID string) {
	note, err := wp.store.NotificationByID(ctx, notificationID)
	if err != nil {
		wp.log.Error("failed to load notification", zap.String("notification", notificationID), zap.Error(err))
		return
	}

	subs, err := wp.store.SubscriptionsForUser(ctx, note.RecipientID)
	if err != nil {
		wp.log.Error("failed to fetch subscriptions",
			zap.String("recipient", note.RecipientID), zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	body, err := json.Marshal(pushEnvelope{
		Kind:      note.Kind,
		Payload:   json.RawMessage(note.Payload),
		CreatedAt: note.CreatedAt,
	})
	if err != nil {
		wp.log.Error("failed to encode push envelope", zap.Error(err))
		return
	}

	for _, sub := range subs {
		wp.send(ctx, sub, body)
	}
}

func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("push delivery failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, pruning", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription",
				zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
