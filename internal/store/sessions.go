package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"campus-guardian-backend/internal/fault"
	"campus-guardian-backend/internal/model"
)

// StartSession deactivates any active session the owner already has and
// creates the new one in a single transaction. Serialized per owner so
// concurrent starts cannot leave two active sessions.
func (s *gormStore) StartSession(ctx context.Context, session *model.GuardianSession, route0 []model.RoutePoint, contactIDs []string) error {
	unlock := s.locks.lock("owner:" + session.OwnerID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Silent supersede: the previous active session (if any) ends now.
		if err := tx.Model(&model.GuardianSession{}).
			Where("owner_id = ? AND is_active = ?", session.OwnerID, true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate previous session for %s: %w", session.OwnerID, err)
		}

		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		for i := range route0 {
			route0[i].SessionID = session.ID
			route0[i].Seq = i
		}
		if len(route0) > 0 {
			if err := tx.Create(&route0).Error; err != nil {
				return fmt.Errorf("failed to seed route: %w", err)
			}
		}

		for _, contactID := range contactIDs {
			link := model.SessionContact{SessionID: session.ID, ContactID: contactID}
			if err := tx.Create(&link).Error; err != nil {
				return fmt.Errorf("failed to link contact %s: %w", contactID, err)
			}
		}
		return nil
	})
}

// SessionByID loads a session with its contact links.
func (s *gormStore) SessionByID(ctx context.Context, id string) (*model.GuardianSession, error) {
	var session model.GuardianSession
	err := s.db.WithContext(ctx).Preload("Contacts").First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.NotFound("session %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSessionByOwner returns the owner's active session.
func (s *gormStore) ActiveSessionByOwner(ctx context.Context, ownerID string) (*model.GuardianSession, error) {
	var session model.GuardianSession
	err := s.db.WithContext(ctx).Preload("Contacts").
		First(&session, "owner_id = ? AND is_active = ?", ownerID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.NotFound("no active session for %s", ownerID)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSessions returns every active session with contacts preloaded,
// for the overdue sweep.
func (s *gormStore) ActiveSessions(ctx context.Context) ([]model.GuardianSession, error) {
	var sessions []model.GuardianSession
	err := s.db.WithContext(ctx).Preload("Contacts").
		Find(&sessions, "is_active = ?", true).Error
	return sessions, err
}

// AppendRoutePoint appends one point to an active session's route and
// returns its sequence number. Appending to an ended session is an error,
// not silently accepted, to prevent stale-client location leakage.
func (s *gormStore) AppendRoutePoint(ctx context.Context, sessionID string, pt model.RoutePoint) (int, error) {
	unlock := s.locks.lock("session:" + sessionID)
	defer unlock()

	var seq int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireActiveSession(tx, sessionID); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.RoutePoint{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
			return err
		}

		pt.SessionID = sessionID
		pt.Seq = int(count)
		if err := tx.Create(&pt).Error; err != nil {
			return fmt.Errorf("failed to append route point: %w", err)
		}
		seq = pt.Seq
		return nil
	})
	return seq, err
}

// SetLastCheckIn records a check-in on an active session.
func (s *gormStore) SetLastCheckIn(ctx context.Context, sessionID string, at time.Time) error {
	unlock := s.locks.lock("session:" + sessionID)
	defer unlock()

	res := s.db.WithContext(ctx).Model(&model.GuardianSession{}).
		Where("id = ? AND is_active = ?", sessionID, true).
		Update("last_check_in_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fault.NotFound("session %s not found or no longer active", sessionID)
	}
	return nil
}

// SetLastEscalated records the sweep's escalation time for dedup.
func (s *gormStore) SetLastEscalated(ctx context.Context, sessionID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.GuardianSession{}).
		Where("id = ?", sessionID).
		Update("last_escalated_at", at).Error
}

// EndSession deactivates a session. Idempotent: ending an already ended
// session is a no-op.
func (s *gormStore) EndSession(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock("session:" + sessionID)
	defer unlock()

	var session model.GuardianSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fault.NotFound("session %s not found", sessionID)
	}
	if err != nil {
		return err
	}
	if !session.IsActive {
		return nil
	}
	return s.db.WithContext(ctx).Model(&session).Update("is_active", false).Error
}

// RoutePoints returns a session's route in append order.
func (s *gormStore) RoutePoints(ctx context.Context, sessionID string) ([]model.RoutePoint, error) {
	var pts []model.RoutePoint
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&pts).Error
	return pts, err
}

func requireActiveSession(tx *gorm.DB, sessionID string) error {
	var session model.GuardianSession
	err := tx.Select("id", "is_active").First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fault.NotFound("session %s not found", sessionID)
	}
	if err != nil {
		return err
	}
	if !session.IsActive {
		return fault.NotFound("session %s is no longer active", sessionID)
	}
	return nil
}
