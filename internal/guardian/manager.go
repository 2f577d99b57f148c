// Package guardian drives the Guardian-session state machine: start,
// location appends, check-ins, ending, and overdue escalation.
package guardian

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campus-guardian-backend/internal/campus"
	"campus-guardian-backend/internal/directory"
	"campus-guardian-backend/internal/fault"
	"campus-guardian-backend/internal/geo"
	"campus-guardian-backend/internal/model"
	"campus-guardian-backend/internal/notify"
	"campus-guardian-backend/internal/store"
)

// StartInput carries the parameters for starting a session.
type StartInput struct {
	OwnerID                string
	Destination            string
	EstimatedArrival       *time.Time
	Route0                 []geo.Point
	TrustedContactIDs      []string
	CheckInIntervalMinutes int
}

// EscalationPolicy configures the overdue sweep: how long before a
// repeat escalation for the same session, and how far overdue (as a
// multiple of the session's own interval) before staff are pulled in.
type EscalationPolicy struct {
	DedupWindow              time.Duration
	StaffThresholdMultiplier float64
}

// Manager owns guardian sessions. Per-owner and per-session ordering is
// enforced by the store; the manager holds no mutable state.
type Manager struct {
	store    store.Store
	dir      directory.Directory
	registry *campus.Registry
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewManager creates a session manager.
func NewManager(s store.Store, dir directory.Directory, registry *campus.Registry, notifier notify.Notifier, log *zap.Logger) *Manager {
	return &Manager{
		store:    s,
		dir:      dir,
		registry: registry,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the manager's clock. Used by tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Start opens a new session. An existing active session for the owner is
// silently superseded. Trusted contacts that resolve to accounts get a
// guardian_started notification carrying the first route point and the
// destination.
func (m *Manager) Start(ctx context.Context, in StartInput) (*model.GuardianSession, error) {
	if in.OwnerID == "" {
		return nil, fault.Validation("owner id is required")
	}
	if in.CheckInIntervalMinutes <= 0 {
		return nil, fault.Validation("check-in interval must be a positive number of minutes, got %d", in.CheckInIntervalMinutes)
	}
	if in.Destination == "" {
		return nil, fault.Validation("destination is required")
	}

	now := m.now()
	session := &model.GuardianSession{
		ID:                     uuid.NewString(),
		OwnerID:                in.OwnerID,
		Destination:            in.Destination,
		IsActive:               true,
		EstimatedArrival:       in.EstimatedArrival,
		CheckInIntervalMinutes: in.CheckInIntervalMinutes,
		LastCheckInAt:          &now,
	}

	route0 := make([]model.RoutePoint, len(in.Route0))
	for i, p := range in.Route0 {
		route0[i] = model.RoutePoint{Lat: p.Lat, Lng: p.Lng, ObservedAt: now}
	}

	if err := m.store.StartSession(ctx, session, route0, in.TrustedContactIDs); err != nil {
		return nil, err
	}

	payload := notify.SessionPayload{
		SessionID:   session.ID,
		OwnerID:     session.OwnerID,
		Destination: session.Destination,
	}
	if len(in.Route0) > 0 {
		payload.Lat, payload.Lng = &in.Route0[0].Lat, &in.Route0[0].Lng
	}
	m.notifyContacts(ctx, session, in.TrustedContactIDs, model.KindGuardianStarted, payload)

	m.log.Info("guardian session started",
		zap.String("session", session.ID),
		zap.String("owner", session.OwnerID),
		zap.Int("contacts", len(in.TrustedContactIDs)))
	return session, nil
}

// AppendLocation appends a point to an active session's route, classifies
// it against the owner's campus (informational only) and notifies trusted
// contacts with a location_update.
func (m *Manager) AppendLocation(ctx context.Context, sessionID, callerID string, pt geo.Point) (geo.Classification, error) {
	session, err := m.store.SessionByID(ctx, sessionID)
	if err != nil {
		return geo.Classification{}, err
	}
	if session.OwnerID != callerID {
		// Not the owner's session: indistinguishable from nonexistent.
		return geo.Classification{}, fault.NotFound("session %s not found", sessionID)
	}
	if !session.IsActive {
		return geo.Classification{}, fault.NotFound("session %s is no longer active", sessionID)
	}

	now := m.now()
	if _, err := m.store.AppendRoutePoint(ctx, sessionID, model.RoutePoint{Lat: pt.Lat, Lng: pt.Lng, ObservedAt: now}); err != nil {
		return geo.Classification{}, err
	}

	cls := m.classify(ctx, session.OwnerID, pt)
	payload := notify.SessionPayload{
		SessionID:   session.ID,
		OwnerID:     session.OwnerID,
		Destination: session.Destination,
		Lat:         &pt.Lat,
		Lng:         &pt.Lng,
		Zone:        string(cls.Zone),
	}
	m.notifyContacts(ctx, session, contactIDs(session), model.KindLocationUpdate, payload)

	m.log.Debug("location appended",
		zap.String("session", sessionID),
		zap.String("zone", string(cls.Zone)))
	return cls, nil
}

// CheckIn records that the owner checked in on time.
func (m *Manager) CheckIn(ctx context.Context, sessionID, callerID string) error {
	session, err := m.store.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.OwnerID != callerID {
		return fault.NotFound("session %s not found", sessionID)
	}
	return m.store.SetLastCheckIn(ctx, sessionID, m.now())
}

// End deactivates the session. Idempotent.
func (m *Manager) End(ctx context.Context, sessionID, callerID string) error {
	session, err := m.store.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.OwnerID != callerID {
		return fault.NotFound("session %s not found", sessionID)
	}
	return m.store.EndSession(ctx, sessionID)
}

// GetActive returns the owner's active session.
func (m *Manager) GetActive(ctx context.Context, ownerID string) (*model.GuardianSession, error) {
	return m.store.ActiveSessionByOwner(ctx, ownerID)
}

// Route returns the session's route in append order. Owner only.
func (m *Manager) Route(ctx context.Context, sessionID, callerID string) ([]model.RoutePoint, error) {
	session, err := m.store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != callerID {
		return nil, fault.NotFound("session %s not found", sessionID)
	}
	return m.store.RoutePoints(ctx, sessionID)
}

// EscalateOverdue sweeps active sessions and escalates the ones past
// their check-in deadline: trusted contacts always, staff once the
// session is overdue beyond the policy multiplier. The escalation is
// advisory; sessions are never auto-ended. A failure on one session is
// logged and the sweep continues. Returns the number of sessions
// escalated.
func (m *Manager) EscalateOverdue(ctx context.Context, policy EscalationPolicy) (int, error) {
	sessions, err := m.store.ActiveSessions(ctx)
	if err != nil {
		return 0, err
	}

	now := m.now()
	escalated := 0
	for i := range sessions {
		session := &sessions[i]

		lastSeen := session.CreatedAt
		if session.LastCheckInAt != nil {
			lastSeen = *session.LastCheckInAt
		}
		interval := time.Duration(session.CheckInIntervalMinutes) * time.Minute
		overdue := now.Sub(lastSeen) - interval
		if overdue <= 0 {
			continue
		}

		dedup := policy.DedupWindow
		if dedup <= 0 {
			dedup = interval
		}
		if session.LastEscalatedAt != nil && now.Sub(*session.LastEscalatedAt) < dedup {
			continue
		}

		if err := m.escalate(ctx, session, now, overdue, policy); err != nil {
			m.log.Error("escalation failed", zap.String("session", session.ID), zap.Error(err))
			continue
		}
		escalated++
	}
	return escalated, nil
}

func (m *Manager) escalate(ctx context.Context, session *model.GuardianSession, now time.Time, overdue time.Duration, policy EscalationPolicy) error {
	payload := notify.SessionPayload{
		SessionID:      session.ID,
		OwnerID:        session.OwnerID,
		Destination:    session.Destination,
		OverdueMinutes: int(overdue.Minutes()),
	}
	m.notifyContacts(ctx, session, contactIDs(session), model.KindCheckinMissed, payload)

	interval := time.Duration(session.CheckInIntervalMinutes) * time.Minute
	staffThreshold := time.Duration(float64(interval) * policy.StaffThresholdMultiplier)
	if overdue > staffThreshold {
		staff, err := m.dir.StaffIDs(ctx)
		if err != nil {
			m.log.Error("failed to list staff for escalation", zap.Error(err))
		} else if _, err := m.notifier.Notify(ctx, model.KindCheckinMissed, staff, session.OwnerID, payload); err != nil {
			m.log.Error("staff escalation fanout failed", zap.String("session", session.ID), zap.Error(err))
		}
	}

	m.log.Warn("check-in overdue",
		zap.String("session", session.ID),
		zap.String("owner", session.OwnerID),
		zap.Duration("overdue", overdue))
	return m.store.SetLastEscalated(ctx, session.ID, now)
}

// classify resolves the owner's campus and classifies the point against
// it. Resolution failures degrade to "outside"; classification never
// blocks a session operation.
func (m *Manager) classify(ctx context.Context, ownerID string, pt geo.Point) geo.Classification {
	uniID, err := m.dir.UniversityOf(ctx, ownerID)
	if err != nil || uniID == 0 {
		return geo.Classify(pt, nil)
	}
	uni, err := m.registry.ByID(ctx, uniID)
	if err != nil {
		m.log.Warn("failed to load university for classification",
			zap.Uint("university", uniID), zap.Error(err))
		return geo.Classify(pt, nil)
	}
	return geo.Classify(pt, campus.CampusGeometry(uni))
}

// notifyContacts resolves contact references and fans the event out.
// Fanout failures are logged, never surfaced: the session transition has
// already committed.
func (m *Manager) notifyContacts(ctx context.Context, session *model.GuardianSession, contacts []string, kind model.NotificationKind, payload notify.SessionPayload) {
	accountIDs, err := m.dir.ResolveContacts(ctx, contacts)
	if err != nil {
		m.log.Error("contact resolution failed", zap.String("session", session.ID), zap.Error(err))
		return
	}
	if _, err := m.notifier.Notify(ctx, kind, accountIDs, session.OwnerID, payload); err != nil {
		m.log.Error("contact fanout failed",
			zap.String("session", session.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

func contactIDs(session *model.GuardianSession) []string {
	ids := make([]string, len(session.Contacts))
	for i, c := range session.Contacts {
		ids[i] = c.ContactID
	}
	return ids
}
