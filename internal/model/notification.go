package model

import "time"

// NotificationKind identifies what a notification is about and which
// payload shape it carries.
type NotificationKind string

const (
	KindGuardianStarted NotificationKind = "guardian_started"
	KindLocationUpdate  NotificationKind = "location_update"
	KindCheckinMissed   NotificationKind = "checkin_missed"
	KindSOSRaised       NotificationKind = "sos_raised"
	KindSOSResolved     NotificationKind = "sos_resolved"
	KindSafetyBroadcast NotificationKind = "safety_broadcast"
)

// Notification is one in-app inbox record. Created only by the fanout,
// mutated only by the read receipt, never deleted.
type Notification struct {
	ID          string           `gorm:"primaryKey;size:36"`
	RecipientID string           `gorm:"index;size:64;not null"`
	SenderID    string           `gorm:"size:64"`
	Kind        NotificationKind `gorm:"size:32;not null"`
	Payload     string           `gorm:"type:text"` // kind-specific JSON
	IsRead      bool             `gorm:"not null"`
	CreatedAt   time.Time        `gorm:"not null;index"`
}
