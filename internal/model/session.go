package model

import "time"

// GuardianSession is one bounded period of location sharing with trusted
// contacts. Sessions are deactivated, never deleted; the route is an
// append-only log kept in route_points.
type GuardianSession struct {
	ID                     string `gorm:"primaryKey;size:36"`
	OwnerID                string `gorm:"index;size:64;not null"`
	Destination            string `gorm:"size:512"`
	IsActive               bool   `gorm:"index;not null"`
	EstimatedArrival       *time.Time
	CheckInIntervalMinutes int        `gorm:"not null"`
	LastCheckInAt          *time.Time // nil until the first check-in
	LastEscalatedAt        *time.Time // set by the overdue sweep to dedupe escalations
	CreatedAt              time.Time  `gorm:"not null"`
	UpdatedAt              time.Time  `gorm:"not null"`

	// Associations
	Route    []RoutePoint     `gorm:"foreignKey:SessionID"`
	Contacts []SessionContact `gorm:"foreignKey:SessionID"`
}

// RoutePoint is one observed location on a session's route.
type RoutePoint struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"index;size:36;not null"`
	Seq        int    `gorm:"not null"`
	Lat        float64
	Lng        float64
	ObservedAt time.Time `gorm:"not null"`
}

// SessionContact links a session to one trusted contact reference.
type SessionContact struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"index;size:36;not null"`
	ContactID string `gorm:"size:64;not null"`
}
