package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campus-guardian-backend/internal/model"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func pushResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func TestWorkerPool_DeliversToEverySubscription(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint: "https://push.example/a", UserID: "alice", P256DH: "k", Auth: "a",
	}))
	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint: "https://push.example/b", UserID: "alice", P256DH: "k", Auth: "a",
	}))

	note := model.Notification{
		ID:          "note-1",
		RecipientID: "alice",
		Kind:        model.KindSOSRaised,
		Payload:     `{"incident_id":"inc-1"}`,
	}
	require.NoError(t, s.CreateNotifications(ctx, []model.Notification{note}))

	var (
		mu        sync.Mutex
		endpoints []string
	)
	var wg sync.WaitGroup
	wg.Add(2)

	wp := NewWorkerPool(1, 8, s, &webpush.Options{}, zap.NewNop())
	wp.SetSender(&mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			var envelope struct {
				Kind    string          `json:"kind"`
				Payload json.RawMessage `json:"payload"`
			}
			assert.NoError(t, json.Unmarshal(payload, &envelope))
			assert.Equal(t, string(model.KindSOSRaised), envelope.Kind)
			assert.JSONEq(t, note.Payload, string(envelope.Payload))

			mu.Lock()
			endpoints = append(endpoints, sub.Endpoint)
			mu.Unlock()
			wg.Done()
			return pushResponse(http.StatusCreated), nil
		},
	})
	wp.Start(ctx)

	wp.Dispatch(note.ID)
	wg.Wait()

	assert.ElementsMatch(t, []string{"https://push.example/a", "https://push.example/b"}, endpoints)
}

func TestWorkerPool_PrunesExpiredSubscription(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint: "https://push.example/expired", UserID: "bob", P256DH: "k", Auth: "a",
	}))
	require.NoError(t, s.CreateNotifications(ctx, []model.Notification{{
		ID: "note-2", RecipientID: "bob", Kind: model.KindCheckinMissed, Payload: `{}`,
	}}))

	var wg sync.WaitGroup
	wg.Add(1)

	wp := NewWorkerPool(1, 8, s, &webpush.Options{}, zap.NewNop())
	wp.SetSender(&mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			defer wg.Done()
			return pushResponse(http.StatusGone), nil
		},
	})
	wp.Start(ctx)

	wp.Dispatch("note-2")
	wg.Wait()

	// The prune happens after the send returns; poll briefly.
	assert.Eventually(t, func() bool {
		subs, err := s.SubscriptionsForUser(ctx, "bob")
		return err == nil && len(subs) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWorkerPool_SendFailureIsSwallowed(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint: "https://push.example/flaky", UserID: "carol", P256DH: "k", Auth: "a",
	}))
	require.NoError(t, s.CreateNotifications(ctx, []model.Notification{{
		ID: "note-3", RecipientID: "carol", Kind: model.KindSOSResolved, Payload: `{}`,
	}}))

	var wg sync.WaitGroup
	wg.Add(1)

	wp := NewWorkerPool(1, 8, s, &webpush.Options{}, zap.NewNop())
	wp.SetSender(&mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			defer wg.Done()
			return nil, errors.New("push service unreachable")
		},
	})
	wp.Start(ctx)

	wp.Dispatch("note-3")
	wg.Wait()

	// Delivery failed but the inbox record and subscription survive.
	note, err := s.NotificationByID(ctx, "note-3")
	require.NoError(t, err)
	assert.False(t, note.IsRead)
	subs, err := s.SubscriptionsForUser(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestWorkerPool_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	s := newTestStore(t)

	// No workers started: the queue only drains by dropping.
	wp := NewWorkerPool(1, 1, s, &webpush.Options{}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		wp.Dispatch("a")
		wp.Dispatch("b") // queue full, must not block
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
}
