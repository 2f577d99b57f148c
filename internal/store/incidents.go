package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campus-guardian-backend/internal/fault"
	"campus-guardian-backend/internal/model"
)

// CreateIncident persists a new incident together with its seed location,
// the contact snapshot and the optional initial chat message.
func (s *gormStore) CreateIncident(ctx context.Context, inc *model.SOSIncident, contacts []model.IncidentContact, firstMessage *model.ChatMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inc).Error; err != nil {
			return fmt.Errorf("failed to create incident: %w", err)
		}

		seed := model.IncidentLocation{
			IncidentID: inc.ID,
			Seq:        0,
			Lat:        inc.CurrentLat,
			Lng:        inc.CurrentLng,
			Address:    inc.CurrentAddress,
			Accuracy:   inc.CurrentAccuracy,
			ObservedAt: inc.CurrentObservedAt,
		}
		if err := tx.Create(&seed).Error; err != nil {
			return fmt.Errorf("failed to seed location history: %w", err)
		}

		for i := range contacts {
			contacts[i].IncidentID = inc.ID
		}
		if len(contacts) > 0 {
			if err := tx.Create(&contacts).Error; err != nil {
				return fmt.Errorf("failed to snapshot contacts: %w", err)
			}
		}

		if firstMessage != nil {
			firstMessage.IncidentID = inc.ID
			if err := tx.Create(firstMessage).Error; err != nil {
				return fmt.Errorf("failed to record initial message: %w", err)
			}
		}
		return nil
	})
}

// IncidentByID loads an incident with its responder and observer sets.
func (s *gormStore) IncidentByID(ctx context.Context, id string) (*model.SOSIncident, error) {
	var inc model.SOSIncident
	err := s.db.WithContext(ctx).
		Preload("Responders").
		Preload("Observers").
		First(&inc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.NotFound("incident %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// ListIncidents returns incidents matching the filter, newest first.
func (s *gormStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]model.SOSIncident, error) {
	q := s.db.WithContext(ctx).Model(&model.SOSIncident{})
	if filter.ReporterID != "" {
		q = q.Where("reporter_id = ?", filter.ReporterID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var incidents []model.SOSIncident
	err := q.Order("created_at DESC").Find(&incidents).Error
	return incidents, err
}

// AppendIncidentLocation appends to the incident's location history and
// updates the current-location snapshot.
func (s *gormStore) AppendIncidentLocation(ctx context.Context, id string, loc model.IncidentLocation) (int, error) {
	unlock := s.locks.lock("incident:" + id)
	defer unlock()

	var seq int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireActiveIncident(tx, id); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.IncidentLocation{}).Where("incident_id = ?", id).Count(&count).Error; err != nil {
			return err
		}

		loc.IncidentID = id
		loc.Seq = int(count)
		if err := tx.Create(&loc).Error; err != nil {
			return fmt.Errorf("failed to append location: %w", err)
		}

		updates := map[string]any{
			"current_lat":         loc.Lat,
			"current_lng":         loc.Lng,
			"current_address":     loc.Address,
			"current_accuracy":    loc.Accuracy,
			"current_observed_at": loc.ObservedAt,
		}
		if err := tx.Model(&model.SOSIncident{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update current location: %w", err)
		}
		seq = loc.Seq
		return nil
	})
	return seq, err
}

// AppendChatMessage appends one chat entry to an active incident.
func (s *gormStore) AppendChatMessage(ctx context.Context, id string, msg model.ChatMessage) error {
	unlock := s.locks.lock("incident:" + id)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireActiveIncident(tx, id); err != nil {
			return err
		}
		msg.IncidentID = id
		return tx.Create(&msg).Error
	})
}

// AttachMedia appends one media reference to an active incident.
func (s *gormStore) AttachMedia(ctx context.Context, id string, item model.MediaItem) error {
	unlock := s.locks.lock("incident:" + id)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireActiveIncident(tx, id); err != nil {
			return err
		}
		item.IncidentID = id
		return tx.Create(&item).Error
	})
}

// AssignIncident sets the assignee and adds them to the responder set;
// assignment implies responding.
func (s *gormStore) AssignIncident(ctx context.Context, id, staffID string) error {
	unlock := s.locks.lock("incident:" + id)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireActiveIncident(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&model.SOSIncident{}).Where("id = ?", id).
			Update("assigned_staff_id", staffID).Error; err != nil {
			return err
		}
		return addResponder(tx, id, staffID)
	})
}

// AddResponder adds a staff member to the responder set. Idempotent.
func (s *gormStore) AddResponder(ctx context.Context, id, staffID string) error {
	unlock := s.locks.lock("incident:" + id)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireActiveIncident(tx, id); err != nil {
			return err
		}
		return addResponder(tx, id, staffID)
	})
}

// AddObserver records a non-exclusive follow relation; following does not
// imply active response.
func (s *gormStore) AddObserver(ctx context.Context, id, staffID string) error {
	unlock := s.locks.lock("incident:" + id)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireActiveIncident(tx, id); err != nil {
			return err
		}
		observer := model.IncidentObserver{IncidentID: id, StaffID: staffID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&observer).Error
	})
}

// CloseIncident moves an active incident to a terminal status and records
// who closed it, when, and the response time from a single clock reading.
func (s *gormStore) CloseIncident(ctx context.Context, id, closedBy string, status model.IncidentStatus, note string, at time.Time) error {
	if !status.Terminal() {
		return fault.Validation("status %q is not a terminal status", status)
	}

	unlock := s.locks.lock("incident:" + id)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inc, err := fetchIncident(tx, id)
		if err != nil {
			return err
		}
		if inc.Status.Terminal() {
			return fault.AlreadyClosed("incident")
		}

		updates := map[string]any{
			"status":                status,
			"resolved_by_id":        closedBy,
			"resolution_note":       note,
			"resolved_at":           at,
			"response_time_seconds": int(at.Sub(inc.CreatedAt).Seconds()),
		}
		return tx.Model(&model.SOSIncident{}).Where("id = ?", id).Updates(updates).Error
	})
}

// IncidentChat returns the chat log in append order.
func (s *gormStore) IncidentChat(ctx context.Context, id string) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := s.db.WithContext(ctx).
		Where("incident_id = ?", id).
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

// IncidentLocations returns the location history in append order.
func (s *gormStore) IncidentLocations(ctx context.Context, id string) ([]model.IncidentLocation, error) {
	var locs []model.IncidentLocation
	err := s.db.WithContext(ctx).
		Where("incident_id = ?", id).
		Order("seq ASC").
		Find(&locs).Error
	return locs, err
}

// IncidentMedia returns attached media in append order.
func (s *gormStore) IncidentMedia(ctx context.Context, id string) ([]model.MediaItem, error) {
	var items []model.MediaItem
	err := s.db.WithContext(ctx).
		Where("incident_id = ?", id).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func addResponder(tx *gorm.DB, id, staffID string) error {
	responder := model.IncidentResponder{IncidentID: id, StaffID: staffID}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&responder).Error
}

func fetchIncident(tx *gorm.DB, id string) (*model.SOSIncident, error) {
	var inc model.SOSIncident
	err := tx.First(&inc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.NotFound("incident %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func requireActiveIncident(tx *gorm.DB, id string) error {
	inc, err := fetchIncident(tx, id)
	if err != nil {
		return err
	}
	if inc.Status.Terminal() {
		return fault.AlreadyClosed("incident")
	}
	return nil
}
