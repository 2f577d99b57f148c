package model

import "time"

// IncidentStatus is the lifecycle state of an SOS incident. Resolved and
// false_alarm are terminal; a closed incident is never reopened.
type IncidentStatus string

const (
	IncidentActive     IncidentStatus = "active"
	IncidentResolved   IncidentStatus = "resolved"
	IncidentFalseAlarm IncidentStatus = "false_alarm"
)

// Terminal reports whether no further transition is permitted.
func (s IncidentStatus) Terminal() bool {
	return s == IncidentResolved || s == IncidentFalseAlarm
}

// IncidentPriority is derived from the incident category at raise time.
type IncidentPriority string

const (
	PriorityHigh   IncidentPriority = "high"
	PriorityMedium IncidentPriority = "medium"
	PriorityLow    IncidentPriority = "low"
)

// SOSIncident is a reported emergency tracked from raise to resolution.
// Chat, media and location history live in append-only child tables.
type SOSIncident struct {
	ID         string           `gorm:"primaryKey;size:36"`
	ReporterID string           `gorm:"index;size:64;not null"`
	Status     IncidentStatus   `gorm:"index;size:16;not null"`
	Priority   IncidentPriority `gorm:"size:16;not null"`
	Category   string           `gorm:"size:64;not null"`

	CurrentLat        float64
	CurrentLng        float64
	CurrentAddress    string `gorm:"size:512"`
	CurrentAccuracy   float64
	CurrentObservedAt time.Time

	Silent bool // raised without audible alarm on the client

	AssignedStaffID     *string `gorm:"size:64"`
	ResolvedByID        *string `gorm:"size:64"`
	ResolutionNote      string  `gorm:"size:1024"`
	ResolvedAt          *time.Time
	ResponseTimeSeconds int

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Locations  []IncidentLocation  `gorm:"foreignKey:IncidentID"`
	Chat       []ChatMessage       `gorm:"foreignKey:IncidentID"`
	Media      []MediaItem         `gorm:"foreignKey:IncidentID"`
	Responders []IncidentResponder `gorm:"foreignKey:IncidentID"`
	Observers  []IncidentObserver  `gorm:"foreignKey:IncidentID"`
	Contacts   []IncidentContact   `gorm:"foreignKey:IncidentID"`
}

// IncidentLocation is one entry in an incident's location history.
type IncidentLocation struct {
	ID         uint   `gorm:"primaryKey"`
	IncidentID string `gorm:"index;size:36;not null"`
	Seq        int    `gorm:"not null"`
	Lat        float64
	Lng        float64
	Address    string `gorm:"size:512"`
	Accuracy   float64
	ObservedAt time.Time `gorm:"not null"`
}

// ChatMessage is one entry in an incident's chat log, tagged with the
// sender's role so staff and reporter messages stay distinguishable.
type ChatMessage struct {
	ID         uint   `gorm:"primaryKey"`
	IncidentID string `gorm:"index;size:36;not null"`
	SenderID   string `gorm:"size:64;not null"`
	SenderRole Role   `gorm:"size:16;not null"`
	Body       string `gorm:"size:2048;not null"`
	Kind       string `gorm:"size:16;not null"` // "text" or "system"
	SentAt     time.Time
}

// MediaItem references one piece of evidence attached to an incident.
type MediaItem struct {
	ID           uint   `gorm:"primaryKey"`
	IncidentID   string `gorm:"index;size:36;not null"`
	Kind         string `gorm:"size:16;not null"` // "photo", "audio", "video"
	URI          string `gorm:"size:1024;not null"`
	CapturedAt   time.Time
	AutoCaptured bool
	CreatedAt    time.Time `gorm:"not null"`
}

// IncidentResponder records a staff member actively responding.
type IncidentResponder struct {
	ID         uint   `gorm:"primaryKey"`
	IncidentID string `gorm:"uniqueIndex:idx_incident_responder;size:36;not null"`
	StaffID    string `gorm:"uniqueIndex:idx_incident_responder;size:64;not null"`
	CreatedAt  time.Time
}

// IncidentObserver records a staff member following an incident without
// taking part in the response.
type IncidentObserver struct {
	ID         uint   `gorm:"primaryKey"`
	IncidentID string `gorm:"uniqueIndex:idx_incident_observer;size:36;not null"`
	StaffID    string `gorm:"uniqueIndex:idx_incident_observer;size:64;not null"`
	CreatedAt  time.Time
}

// IncidentContact is a snapshot of one of the reporter's emergency
// contacts taken when the incident was raised, kept for audit.
type IncidentContact struct {
	ID         uint   `gorm:"primaryKey"`
	IncidentID string `gorm:"index;size:36;not null"`
	ContactID  string `gorm:"size:64"`
	Name       string `gorm:"size:256"`
	Phone      string `gorm:"size:64"`
}
