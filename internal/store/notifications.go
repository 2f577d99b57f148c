package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campus-guardian-backend/internal/fault"
	"campus-guardian-backend/internal/model"
)

// CreateNotifications persists a batch of notification records.
func (s *gormStore) CreateNotifications(ctx context.Context, notes []model.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&notes).Error
}

// NotificationByID loads one notification record.
func (s *gormStore) NotificationByID(ctx context.Context, id string) (*model.Notification, error) {
	var note model.Notification
	err := s.db.WithContext(ctx).First(&note, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.NotFound("notification %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// MarkNotificationRead flips the read receipt. The recipient id must
// match; we never reveal whether the record exists for someone else.
func (s *gormStore) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	res := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fault.NotFound("notification %s not found", id)
	}
	return nil
}

// ListNotifications returns a recipient's inbox, newest first.
func (s *gormStore) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error) {
	q := s.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var notes []model.Notification
	err := q.Order("created_at DESC").Find(&notes).Error
	return notes, err
}

// SubscriptionsForUser returns the push subscriptions registered for an
// account.
func (s *gormStore) SubscriptionsForUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error
	return subs, err
}

// UpsertSubscription creates or replaces a subscription by endpoint.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error
}

// DeleteSubscription removes a subscription by endpoint. Used both by the
// unsubscribe API and by the delivery worker when the push service says
// the endpoint is gone.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}
