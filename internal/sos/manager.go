// Package sos drives the SOS-incident state machine with role-gated
// transitions: reporters raise, append and cancel; staff triage, respond
// and resolve.
package sos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campus-guardian-backend/internal/directory"
	"campus-guardian-backend/internal/fault"
	"campus-guardian-backend/internal/model"
	"campus-guardian-backend/internal/notify"
	"campus-guardian-backend/internal/store"
)

// Location is an observed incident location.
type Location struct {
	Lat        float64
	Lng        float64
	Address    string
	Accuracy   float64
	ObservedAt time.Time
}

// RaiseInput carries the parameters for raising an incident.
type RaiseInput struct {
	ReporterID     string
	Location       Location
	Category       string
	InitialMessage string
	Silent         bool
}

// MediaInput describes a media attachment.
type MediaInput struct {
	Kind         string
	URI          string
	CapturedAt   time.Time
	AutoCaptured bool
}

// Manager owns SOS incidents.
type Manager struct {
	store    store.Store
	dir      directory.Directory
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewManager creates an incident manager.
func NewManager(s store.Store, dir directory.Directory, notifier notify.Notifier, log *zap.Logger) *Manager {
	return &Manager{
		store:    s,
		dir:      dir,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the manager's clock. Used by tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// priorityFor derives the triage priority from the incident category.
func priorityFor(category string) model.IncidentPriority {
	if strings.EqualFold(category, "emergency") {
		return model.PriorityHigh
	}
	return model.PriorityMedium
}

// Raise creates an active incident, snapshots the reporter's emergency
// contacts for audit, seeds the location history and alerts every staff
// and security account.
func (m *Manager) Raise(ctx context.Context, in RaiseInput) (*model.SOSIncident, error) {
	if in.ReporterID == "" {
		return nil, fault.Validation("reporter id is required")
	}
	if in.Category == "" {
		return nil, fault.Validation("category is required")
	}
	if in.Location.Lat == 0 && in.Location.Lng == 0 {
		return nil, fault.Validation("location coordinates are required")
	}

	now := m.now()
	observedAt := in.Location.ObservedAt
	if observedAt.IsZero() {
		observedAt = now
	}

	inc := &model.SOSIncident{
		ID:                uuid.NewString(),
		ReporterID:        in.ReporterID,
		Status:            model.IncidentActive,
		Priority:          priorityFor(in.Category),
		Category:          in.Category,
		CurrentLat:        in.Location.Lat,
		CurrentLng:        in.Location.Lng,
		CurrentAddress:    in.Location.Address,
		CurrentAccuracy:   in.Location.Accuracy,
		CurrentObservedAt: observedAt,
		Silent:            in.Silent,
		CreatedAt:         now,
	}

	contacts, err := m.dir.ContactsOf(ctx, in.ReporterID)
	if err != nil {
		m.log.Error("contact snapshot failed, raising without it",
			zap.String("reporter", in.ReporterID), zap.Error(err))
	}
	snapshot := make([]model.IncidentContact, len(contacts))
	for i, c := range contacts {
		snapshot[i] = model.IncidentContact{ContactID: c.ID, Name: c.Name, Phone: c.Phone}
	}

	var firstMessage *model.ChatMessage
	if in.InitialMessage != "" {
		firstMessage = &model.ChatMessage{
			SenderID:   in.ReporterID,
			SenderRole: model.RoleStudent,
			Body:       in.InitialMessage,
			Kind:       "text",
			SentAt:     now,
		}
	}

	if err := m.store.CreateIncident(ctx, inc, snapshot, firstMessage); err != nil {
		return nil, err
	}

	m.alertStaff(ctx, inc)

	m.log.Info("sos incident raised",
		zap.String("incident", inc.ID),
		zap.String("reporter", inc.ReporterID),
		zap.String("category", inc.Category),
		zap.String("priority", string(inc.Priority)))
	return inc, nil
}

// AppendLocation appends to the location history. Reporter only,
// active only.
func (m *Manager) AppendLocation(ctx context.Context, id, callerID string, loc Location) error {
	inc, err := m.store.IncidentByID(ctx, id)
	if err != nil {
		return err
	}
	if inc.ReporterID != callerID {
		return fault.Forbidden("only the reporter may update the incident location")
	}

	observedAt := loc.ObservedAt
	if observedAt.IsZero() {
		observedAt = m.now()
	}
	_, err = m.store.AppendIncidentLocation(ctx, id, model.IncidentLocation{
		Lat:        loc.Lat,
		Lng:        loc.Lng,
		Address:    loc.Address,
		Accuracy:   loc.Accuracy,
		ObservedAt: observedAt,
	})
	return err
}

// AppendChat appends a chat entry. Reporter or staff, active only.
func (m *Manager) AppendChat(ctx context.Context, id, callerID string, callerRole model.Role, text string) error {
	if strings.TrimSpace(text) == "" {
		return fault.Validation("chat message must not be empty")
	}

	inc, err := m.store.IncidentByID(ctx, id)
	if err != nil {
		return err
	}
	if !callerRole.IsStaff() && inc.ReporterID != callerID {
		return fault.Forbidden("only the reporter or staff may chat on this incident")
	}

	return m.store.AppendChatMessage(ctx, id, model.ChatMessage{
		SenderID:   callerID,
		SenderRole: callerRole,
		Body:       text,
		Kind:       "text",
		SentAt:     m.now(),
	})
}

// AttachMedia attaches evidence. Reporter only, active only.
func (m *Manager) AttachMedia(ctx context.Context, id, callerID string, in MediaInput) error {
	if in.URI == "" {
		return fault.Validation("media uri is required")
	}

	inc, err := m.store.IncidentByID(ctx, id)
	if err != nil {
		return err
	}
	if inc.ReporterID != callerID {
		return fault.Forbidden("only the reporter may attach media")
	}

	return m.store.AttachMedia(ctx, id, model.MediaItem{
		Kind:         in.Kind,
		URI:          in.URI,
		CapturedAt:   in.CapturedAt,
		AutoCaptured: in.AutoCaptured,
		CreatedAt:    m.now(),
	})
}

// Assign sets the assignee. Staff only, active only. Assignment implies
// responding.
func (m *Manager) Assign(ctx context.Context, id, staffID string, role model.Role) error {
	if !role.IsStaff() {
		return fault.Forbidden("only staff may assign an incident")
	}
	if _, err := m.store.IncidentByID(ctx, id); err != nil {
		return err
	}
	return m.store.AssignIncident(ctx, id, staffID)
}

// Respond adds the caller to the responder set. Staff only, active only,
// idempotent.
func (m *Manager) Respond(ctx context.Context, id, staffID string, role model.Role) error {
	if !role.IsStaff() {
		return fault.Forbidden("only staff may respond to an incident")
	}
	if _, err := m.store.IncidentByID(ctx, id); err != nil {
		return err
	}
	return m.store.AddResponder(ctx, id, staffID)
}

// Follow records an observer relation, distinct from responding.
// Staff only, active only.
func (m *Manager) Follow(ctx context.Context, id, staffID string, role model.Role) error {
	if !role.IsStaff() {
		return fault.Forbidden("only staff may follow an incident")
	}
	if _, err := m.store.IncidentByID(ctx, id); err != nil {
		return err
	}
	return m.store.AddObserver(ctx, id, staffID)
}

// SetStatus closes an incident as resolved or false_alarm. Staff only;
// legal only from active.
func (m *Manager) SetStatus(ctx context.Context, id, staffID string, role model.Role, status model.IncidentStatus, note string) error {
	if !role.IsStaff() {
		return fault.Forbidden("only staff may set the incident status")
	}
	if !status.Terminal() {
		return fault.Validation("status must be %q or %q, got %q", model.IncidentResolved, model.IncidentFalseAlarm, status)
	}

	if err := m.store.CloseIncident(ctx, id, staffID, status, note, m.now()); err != nil {
		return err
	}

	inc, err := m.store.IncidentByID(ctx, id)
	if err == nil {
		m.fanIncident(ctx, inc, []string{inc.ReporterID}, staffID)
	}

	m.log.Info("sos incident closed",
		zap.String("incident", id),
		zap.String("status", string(status)),
		zap.String("by", staffID))
	return nil
}

// Cancel closes the incident as a false alarm. Reporter only; legal only
// from active.
func (m *Manager) Cancel(ctx context.Context, id, callerID, reason string) error {
	inc, err := m.store.IncidentByID(ctx, id)
	if err != nil {
		return err
	}
	if inc.ReporterID != callerID {
		return fault.Forbidden("only the reporter may cancel this incident")
	}

	if err := m.store.CloseIncident(ctx, id, callerID, model.IncidentFalseAlarm, reason, m.now()); err != nil {
		return err
	}

	// Staff saw the raise; tell them it was a false alarm.
	if closed, err := m.store.IncidentByID(ctx, id); err == nil {
		m.alertStaff(ctx, closed)
	}

	m.log.Info("sos incident cancelled by reporter", zap.String("incident", id))
	return nil
}

// GetByID returns an incident to its reporter or to staff.
func (m *Manager) GetByID(ctx context.Context, id, callerID string, role model.Role) (*model.SOSIncident, error) {
	inc, err := m.store.IncidentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.gateRead(inc, callerID, role); err != nil {
		return nil, err
	}
	return inc, nil
}

// ListMine returns the caller's own incidents.
func (m *Manager) ListMine(ctx context.Context, callerID string) ([]model.SOSIncident, error) {
	return m.store.ListIncidents(ctx, store.IncidentFilter{ReporterID: callerID})
}

// ListAll returns every incident, optionally filtered by status.
// Staff only.
func (m *Manager) ListAll(ctx context.Context, role model.Role, status model.IncidentStatus) ([]model.SOSIncident, error) {
	if !role.IsStaff() {
		return nil, fault.Forbidden("only staff may list all incidents")
	}
	return m.store.ListIncidents(ctx, store.IncidentFilter{Status: status})
}

// GetChat returns the chat log. Staff, or the reporter reading their own
// incident.
func (m *Manager) GetChat(ctx context.Context, id, callerID string, role model.Role) ([]model.ChatMessage, error) {
	inc, err := m.store.IncidentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.gateRead(inc, callerID, role); err != nil {
		return nil, err
	}
	return m.store.IncidentChat(ctx, id)
}

// GetLocationHistory returns the location history under the same gates
// as GetChat.
func (m *Manager) GetLocationHistory(ctx context.Context, id, callerID string, role model.Role) ([]model.IncidentLocation, error) {
	inc, err := m.store.IncidentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.gateRead(inc, callerID, role); err != nil {
		return nil, err
	}
	return m.store.IncidentLocations(ctx, id)
}

// GetMedia returns attached media under the same gates as GetChat.
func (m *Manager) GetMedia(ctx context.Context, id, callerID string, role model.Role) ([]model.MediaItem, error) {
	inc, err := m.store.IncidentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.gateRead(inc, callerID, role); err != nil {
		return nil, err
	}
	return m.store.IncidentMedia(ctx, id)
}

func (m *Manager) gateRead(inc *model.SOSIncident, callerID string, role model.Role) error {
	if role.IsStaff() || inc.ReporterID == callerID {
		return nil
	}
	// Hide existence from everyone else.
	return fault.NotFound("incident %s not found", inc.ID)
}

func (m *Manager) alertStaff(ctx context.Context, inc *model.SOSIncident) {
	staff, err := m.dir.StaffIDs(ctx)
	if err != nil {
		m.log.Error("failed to list staff", zap.String("incident", inc.ID), zap.Error(err))
		return
	}
	m.fanIncident(ctx, inc, staff, inc.ReporterID)
}

// fanIncident fans an incident event out; the notification kind follows
// the incident's status (active → sos_raised, terminal → sos_resolved).
func (m *Manager) fanIncident(ctx context.Context, inc *model.SOSIncident, recipients []string, senderID string) {
	payload := notify.IncidentPayload{
		IncidentID: inc.ID,
		ReporterID: inc.ReporterID,
		Category:   inc.Category,
		Priority:   string(inc.Priority),
		Status:     string(inc.Status),
		Lat:        inc.CurrentLat,
		Lng:        inc.CurrentLng,
	}
	kind := model.KindSOSRaised
	if inc.Status.Terminal() {
		kind = model.KindSOSResolved
	}
	if _, err := m.notifier.Notify(ctx, kind, recipients, senderID, payload); err != nil {
		m.log.Error("incident fanout failed",
			zap.String("incident", inc.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}
