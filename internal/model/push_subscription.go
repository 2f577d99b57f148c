package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Each subscription belongs to one account; expired endpoints are pruned
// by the delivery worker.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	UserID    string    `gorm:"index;size:64;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
