package model

import "time"

// University represents a registered campus: its center point, polygon
// boundary and coverage radius. Seeded at startup, immutable at runtime.
type University struct {
	ID               uint   `gorm:"primaryKey"`
	Name             string `gorm:"uniqueIndex;size:256;not null"`
	CenterLat        float64
	CenterLng        float64
	CoverageRadiusKm float64
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`

	// Associations
	Boundary []BoundaryVertex `gorm:"foreignKey:UniversityID"`
}

// BoundaryVertex is one vertex of a university's boundary polygon.
// Vertices are ordered by Seq; the closing edge back to Seq 0 is implied.
type BoundaryVertex struct {
	ID           uint `gorm:"primaryKey"`
	UniversityID uint `gorm:"index;not null"`
	Seq          int  `gorm:"not null"`
	Lat          float64
	Lng          float64
}
