package store

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"campus-guardian-backend/internal/model"
)

// Store defines the interface for all database operations. Mutations on
// one session or incident are serialized on the entity's id; operations
// on different entities proceed in parallel.
type Store interface {
	DB() *gorm.DB

	// Guardian sessions
	StartSession(ctx context.Context, session *model.GuardianSession, route0 []model.RoutePoint, contactIDs []string) error
	SessionByID(ctx context.Context, id string) (*model.GuardianSession, error)
	ActiveSessionByOwner(ctx context.Context, ownerID string) (*model.GuardianSession, error)
	ActiveSessions(ctx context.Context) ([]model.GuardianSession, error)
	AppendRoutePoint(ctx context.Context, sessionID string, pt model.RoutePoint) (int, error)
	SetLastCheckIn(ctx context.Context, sessionID string, at time.Time) error
	SetLastEscalated(ctx context.Context, sessionID string, at time.Time) error
	EndSession(ctx context.Context, sessionID string) error
	RoutePoints(ctx context.Context, sessionID string) ([]model.RoutePoint, error)

	// SOS incidents
	CreateIncident(ctx context.Context, inc *model.SOSIncident, contacts []model.IncidentContact, firstMessage *model.ChatMessage) error
	IncidentByID(ctx context.Context, id string) (*model.SOSIncident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]model.SOSIncident, error)
	AppendIncidentLocation(ctx context.Context, id string, loc model.IncidentLocation) (int, error)
	AppendChatMessage(ctx context.Context, id string, msg model.ChatMessage) error
	AttachMedia(ctx context.Context, id string, item model.MediaItem) error
	AssignIncident(ctx context.Context, id, staffID string) error
	AddResponder(ctx context.Context, id, staffID string) error
	AddObserver(ctx context.Context, id, staffID string) error
	CloseIncident(ctx context.Context, id, closedBy string, status model.IncidentStatus, note string, at time.Time) error
	IncidentChat(ctx context.Context, id string) ([]model.ChatMessage, error)
	IncidentLocations(ctx context.Context, id string) ([]model.IncidentLocation, error)
	IncidentMedia(ctx context.Context, id string) ([]model.MediaItem, error)

	// Notifications and push subscriptions
	CreateNotifications(ctx context.Context, notes []model.Notification) error
	NotificationByID(ctx context.Context, id string) (*model.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) error
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error)
	SubscriptionsForUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// IncidentFilter narrows ListIncidents.
type IncidentFilter struct {
	ReporterID string
	Status     model.IncidentStatus
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db    *gorm.DB
	locks keyedMutex
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

// keyedMutex hands out one mutex per contention key. Session starts
// lock the owner id; appends and state changes lock the entity id.
type keyedMutex struct {
	mu sync.Map
}

func (k *keyedMutex) lock(key string) func() {
	v, _ := k.mu.LoadOrStore(key, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
