package sweep

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
	"campus-guardian-backend/internal/guardian"
	"campus-guardian-backend/internal/model"
	"campus-guardian-backend/internal/store"
)

// countingNotifier counts fanouts per kind.
type countingNotifier struct {
	counts map[model.NotificationKind]int
}

func (n *countingNotifier) Notify(ctx context.Context, kind model.NotificationKind, recipientIDs []string, senderID string, payload any) ([]string, error) {
	if n.counts == nil {
		n.counts = make(map[model.NotificationKind]int)
	}
	n.counts[kind]++
	return nil, nil
}

func newTestSweeper(t *testing.T) (*Sweeper, *guardian.Manager, *countingNotifier, *time.Time) {
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

	notifier := &countingNotifier{}
	now := time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC)
	manager := guardian.NewManager(store.NewGormStore(gormDB), directory.NewGorm(gormDB), campus.NewRegistry(gormDB), notifier, zap.NewNop())
	manager.SetClock(func() time.Time { return now })

	cfg := config.SweepConfig{
		Enabled:                  true,
		StaffThresholdMultiplier: 3,
		RunTimeoutSeconds:        5,
	}
	return New(manager, cfg, zap.NewNop()), manager, notifier, &now
}

func TestRunOnce_EscalatesOverdueSessions(t *testing.T) {
	sweeper, manager, notifier, now := newTestSweeper(t)
	ctx := context.Background()

	_, err := manager.Start(ctx, guardian.StartInput{
		OwnerID:                "alice",
		Destination:            "dorm",
		CheckInIntervalMinutes: 10,
	})
	require.NoError(t, err)

	// Not yet overdue.
	assert.Zero(t, sweeper.RunOnce(ctx))
	assert.Zero(t, notifier.counts[model.KindCheckinMissed])

	*now = now.Add(25 * time.Minute)
	assert.Equal(t, 1, sweeper.RunOnce(ctx))
}

func TestRunOnce_SkipsWhileInFlight(t *testing.T) {
	sweeper, _, _, _ := newTestSweeper(t)

	// Simulate a run still in progress.
	require.True(t, sweeper.inFlight.CompareAndSwap(false, true))
	assert.Zero(t, sweeper.RunOnce(context.Background()))
	sweeper.inFlight.Store(false)
}

func TestStartAndStop(t *testing.T) {
	sweeper, _, _, _ := newTestSweeper(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sweeper.Start(ctx, time.Hour))
	sweeper.Stop()
}
