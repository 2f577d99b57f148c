package model

import "time"

// Role is the caller's role as supplied by the external identity layer.
type Role string

const (
	RoleStudent  Role = "student"
	RoleStaff    Role = "staff"
	RoleSecurity Role = "security"
)

// IsStaff reports whether the role carries staff capabilities. Campus
// security counts as staff for every incident operation.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleSecurity
}

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleStaff || r == RoleSecurity
}

// User is a directory account. Identity verification happens outside this
// service; the row exists so the directory can resolve contacts and list
// staff recipients.
type User struct {
	ID           string `gorm:"primaryKey;size:64"`
	DisplayName  string `gorm:"size:256"`
	Role         Role   `gorm:"index;size:16;not null"`
	UniversityID uint   `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EmergencyContact is a user's trusted contact. AccountID is set when the
// contact maps to a directory account and can receive notifications.
type EmergencyContact struct {
	ID        string `gorm:"primaryKey;size:64"`
	OwnerID   string `gorm:"index;size:64;not null"`
	Name      string `gorm:"size:256"`
	Phone     string `gorm:"size:64"`
	AccountID string `gorm:"size:64"` // empty when unresolvable
	CreatedAt time.Time
	UpdatedAt time.Time
}
