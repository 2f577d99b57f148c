package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campus-guardian-backend/internal/db"
	"campus-guardian-backend/internal/fault"
	"campus-guardian-backend/internal/model"
	"campus-guardian-backend/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB)
}

// recordingDispatcher collects dispatched notification ids.
type recordingDispatcher struct {
	ids []string
}

func (d *recordingDispatcher) Dispatch(id string) { d.ids = append(d.ids, id) }

func TestNotify_PersistsOnePerRecipientAndDispatches(t *testing.T) {
	s := newTestStore(t)
	dispatcher := &recordingDispatcher{}
	f := NewFanout(s, dispatcher, zap.NewNop())
	ctx := context.Background()

	ids, err := f.Notify(ctx, model.KindSOSRaised, []string{"staff-1", "staff-2"}, "alice",
		IncidentPayload{IncidentID: "inc-1", ReporterID: "alice", Category: "emergency"})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.ElementsMatch(t, ids, dispatcher.ids)

	for _, recipient := range []string{"staff-1", "staff-2"} {
		inbox, err := f.Inbox(ctx, recipient, true)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, model.KindSOSRaised, inbox[0].Kind)
		assert.Equal(t, "alice", inbox[0].SenderID)
		assert.Contains(t, inbox[0].Payload, `"incident_id":"inc-1"`)
	}
}

func TestNotify_NoRecipientsIsNoop(t *testing.T) {
	s := newTestStore(t)
	dispatcher := &recordingDispatcher{}
	f := NewFanout(s, dispatcher, zap.NewNop())

	ids, err := f.Notify(context.Background(), model.KindLocationUpdate, nil, "alice", SessionPayload{SessionID: "s1"})
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, dispatcher.ids)
}

func TestMarkRead(t *testing.T) {
	s := newTestStore(t)
	f := NewFanout(s, &recordingDispatcher{}, zap.NewNop())
	ctx := context.Background()

	ids, err := f.Notify(ctx, model.KindCheckinMissed, []string{"carol"}, "", SessionPayload{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	err = f.MarkRead(ctx, ids[0], "not-carol")
	assert.True(t, fault.IsKind(err, fault.KindNotFound))

	require.NoError(t, f.MarkRead(ctx, ids[0], "carol"))

	unread, err := f.Inbox(ctx, "carol", true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
