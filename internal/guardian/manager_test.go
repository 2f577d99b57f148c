package guardian

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campus-guardian-backend/config"
	"campus-guardian-backend/internal/campus"
	"campus-guardian-backend/internal/db"
	"campus-guardian-backend/internal/directory"
	"campus-guardian-backend/internal/fault"
	"campus-guardian-backend/internal/geo"
	"campus-guardian-backend/internal/model"
	"campus-guardian-backend/internal/notify"
	"campus-guardian-backend/internal/store"
)

// fakeNotifier records every fanout instead of delivering.
type fakeNotifier struct {
	calls []fanoutCall
}

type fanoutCall struct {
	kind       model.NotificationKind
	recipients []string
	senderID   string
	payload    notify.SessionPayload
}

func (f *fakeNotifier) Notify(ctx context.Context, kind model.NotificationKind, recipientIDs []string, senderID string, payload any) ([]string, error) {
	f.calls = append(f.calls, fanoutCall{
		kind:       kind,
		recipients: recipientIDs,
		senderID:   senderID,
		payload:    payload.(notify.SessionPayload),
	})
	ids := make([]string, len(recipientIDs))
	for i := range recipientIDs {
		ids[i] = uuid.NewString()
	}
	return ids, nil
}

func (f *fakeNotifier) byKind(kind model.NotificationKind) []fanoutCall {
	var out []fanoutCall
	for _, c := range f.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type testEnv struct {
	db       *gorm.DB
	manager  *Manager
	notifier *fakeNotifier
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
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

	registry := campus.NewRegistry(gormDB)
	require.NoError(t, registry.Seed(context.Background(), []config.CampusSeed{{
		Name:             "Test Campus",
		Center:           config.LatLng{Lat: 31.0, Lng: 121.0},
		CoverageRadiusKm: 5,
		Boundary: []config.LatLng{
			{Lat: 30.99, Lng: 120.99},
			{Lat: 30.99, Lng: 121.01},
			{Lat: 31.01, Lng: 121.01},
			{Lat: 31.01, Lng: 120.99},
		},
	}}))

	env := &testEnv{
		db:       gormDB,
		notifier: &fakeNotifier{},
		now:      time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC),
	}
	env.manager = NewManager(store.NewGormStore(gormDB), directory.NewGorm(gormDB), registry, env.notifier, zap.NewNop())
	env.manager.SetClock(func() time.Time { return env.now })
	return env
}

// seedOwner creates the session owner on the test campus plus one
// emergency contact that resolves to a notifiable account.
func (e *testEnv) seedOwner(t *testing.T, ownerID string) {
	t.Helper()

	var uni model.University
	require.NoError(t, e.db.First(&uni, "name = ?", "Test Campus").Error)

	require.NoError(t, e.db.Create(&model.User{ID: ownerID, DisplayName: ownerID, Role: model.RoleStudent, UniversityID: uni.ID}).Error)
	require.NoError(t, e.db.Create(&model.User{ID: ownerID + "-friend", Role: model.RoleStudent}).Error)
	require.NoError(t, e.db.Create(&model.EmergencyContact{
		ID:        "contact-" + ownerID,
		OwnerID:   ownerID,
		Name:      "Friend",
		AccountID: ownerID + "-friend",
	}).Error)
}

func startInput(ownerID string) StartInput {
	return StartInput{
		OwnerID:                ownerID,
		Destination:            "north dorm",
		Route0:                 []geo.Point{{Lat: 31.0, Lng: 121.0}},
		TrustedContactIDs:      []string{"contact-" + ownerID},
		CheckInIntervalMinutes: 15,
	}
}

func TestStart_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.manager.Start(ctx, StartInput{Destination: "x", CheckInIntervalMinutes: 5})
	assert.True(t, fault.IsKind(err, fault.KindValidation))

	_, err = env.manager.Start(ctx, StartInput{OwnerID: "a", Destination: "x"})
	assert.True(t, fault.IsKind(err, fault.KindValidation))

	_, err = env.manager.Start(ctx, StartInput{OwnerID: "a", CheckInIntervalMinutes: 5})
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestStartAndAppend_NotifiesContactExactlyOncePerEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOwner(t, "alice")

	session, err := env.manager.Start(ctx, startInput("alice"))
	require.NoError(t, err)

	cls, err := env.manager.AppendLocation(ctx, session.ID, "alice", geo.Point{Lat: 31.002, Lng: 121.002})
	require.NoError(t, err)
	assert.Equal(t, geo.ZoneCampus, cls.Zone)

	started := env.notifier.byKind(model.KindGuardianStarted)
	require.Len(t, started, 1)
	assert.Equal(t, []string{"alice-friend"}, started[0].recipients)
	assert.Equal(t, "alice", started[0].senderID)
	assert.Equal(t, session.ID, started[0].payload.SessionID)
	assert.Equal(t, "north dorm", started[0].payload.Destination)
	require.NotNil(t, started[0].payload.Lat)
	assert.Equal(t, 31.0, *started[0].payload.Lat)

	updates := env.notifier.byKind(model.KindLocationUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, []string{"alice-friend"}, updates[0].recipients)
	assert.Equal(t, string(geo.ZoneCampus), updates[0].payload.Zone)

	pts, err := env.manager.Route(ctx, session.ID, "alice")
	require.NoError(t, err)
	assert.Len(t, pts, 2)
}

func TestAppendLocation_Gates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOwner(t, "bob")

	session, err := env.manager.Start(ctx, startInput("bob"))
	require.NoError(t, err)

	_, err = env.manager.AppendLocation(ctx, session.ID, "mallory", geo.Point{Lat: 1, Lng: 2})
	assert.True(t, fault.IsKind(err, fault.KindNotFound))

	require.NoError(t, env.manager.End(ctx, session.ID, "bob"))
	_, err = env.manager.AppendLocation(ctx, session.ID, "bob", geo.Point{Lat: 1, Lng: 2})
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}

func TestAppendLocation_OffCampusOwnerClassifiesOutside(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// No directory row: the owner has no registered university.
	session, err := env.manager.Start(ctx, StartInput{
		OwnerID:                "nomad",
		Destination:            "station",
		CheckInIntervalMinutes: 20,
	})
	require.NoError(t, err)

	cls, err := env.manager.AppendLocation(ctx, session.ID, "nomad", geo.Point{Lat: 31.0, Lng: 121.0})
	require.NoError(t, err)
	assert.Equal(t, geo.ZoneOutside, cls.Zone)
}

func TestCheckIn_MovesDeadline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOwner(t, "carol")

	session, err := env.manager.Start(ctx, startInput("carol"))
	require.NoError(t, err)

	env.now = env.now.Add(10 * time.Minute)
	require.NoError(t, env.manager.CheckIn(ctx, session.ID, "carol"))

	active, err := env.manager.GetActive(ctx, "carol")
	require.NoError(t, err)
	require.NotNil(t, active.LastCheckInAt)
	assert.WithinDuration(t, env.now, *active.LastCheckInAt, time.Second)

	assert.True(t, fault.IsKind(env.manager.CheckIn(ctx, session.ID, "mallory"), fault.KindNotFound))
}

func TestGetActive_NoSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.manager.GetActive(context.Background(), "nobody")
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}

func TestEscalateOverdue_NotifiesContactsOnceAndDedupes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOwner(t, "dora")

	_, err := env.manager.Start(ctx, startInput("dora"))
	require.NoError(t, err)

	policy := EscalationPolicy{StaffThresholdMultiplier: 3}

	// On time: nothing to do.
	n, err := env.manager.EscalateOverdue(ctx, policy)
	require.NoError(t, err)
	assert.Zero(t, n)

	// 20 minutes past a 15-minute interval: 5 minutes overdue.
	env.now = env.now.Add(20 * time.Minute)
	n, err = env.manager.EscalateOverdue(ctx, policy)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	missed := env.notifier.byKind(model.KindCheckinMissed)
	require.Len(t, missed, 1)
	assert.Equal(t, []string{"dora-friend"}, missed[0].recipients)
	assert.Equal(t, 5, missed[0].payload.OverdueMinutes)

	// Immediately after: the dedup window suppresses a repeat.
	n, err = env.manager.EscalateOverdue(ctx, policy)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, env.notifier.byKind(model.KindCheckinMissed), 1)

	// Past the dedup window (defaults to the session interval).
	env.now = env.now.Add(16 * time.Minute)
	n, err = env.manager.EscalateOverdue(ctx, policy)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, env.notifier.byKind(model.KindCheckinMissed), 2)
}

func TestEscalateOverdue_StaffPulledInPastThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOwner(t, "eve")
	require.NoError(t, env.db.Create(&model.User{ID: "sec-1", Role: model.RoleSecurity}).Error)

	_, err := env.manager.Start(ctx, startInput("eve"))
	require.NoError(t, err)

	// 15-minute interval, multiplier 3: staff join past 45 minutes
	// overdue, i.e. one hour after the last check-in.
	env.now = env.now.Add(70 * time.Minute)
	n, err := env.manager.EscalateOverdue(ctx, EscalationPolicy{StaffThresholdMultiplier: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	missed := env.notifier.byKind(model.KindCheckinMissed)
	require.Len(t, missed, 2) // contacts plus staff
	assert.Equal(t, []string{"eve-friend"}, missed[0].recipients)
	assert.Contains(t, missed[1].recipients, "sec-1")
}

func TestEscalateOverdue_NeverEndsSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOwner(t, "fay")

	session, err := env.manager.Start(ctx, startInput("fay"))
	require.NoError(t, err)

	env.now = env.now.Add(6 * time.Hour)
	_, err = env.manager.EscalateOverdue(ctx, EscalationPolicy{StaffThresholdMultiplier: 3})
	require.NoError(t, err)

	active, err := env.manager.GetActive(ctx, "fay")
	require.NoError(t, err)
	assert.Equal(t, session.ID, active.ID)
}
