// Package campus is the read-mostly catalog of universities the geofence
// resolver classifies against.
package campus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campus-guardian-backend/config"
	"campus-guardian-backend/internal/fault"
	"campus-guardian-backend/internal/geo"
	"campus-guardian-backend/internal/model"
)

// Registry serves university geometry. Rows are seeded at startup and
// rarely change, so reads go through a short-lived in-process cache.
type Registry struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewRegistry creates a registry over the given database.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{
		db:    db,
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// Seed upserts the configured universities and replaces their boundary
// polygons. Called once at startup.
func (r *Registry) Seed(ctx context.Context, seeds []config.CampusSeed) error {
	for _, seed := range seeds {
		uni := model.University{
			Name:             seed.Name,
			CenterLat:        seed.Center.Lat,
			CenterLng:        seed.Center.Lng,
			CoverageRadiusKm: seed.CoverageRadiusKm,
		}

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"center_lat", "center_lng", "coverage_radius_km", "updated_at"}),
			}).Create(&uni).Error; err != nil {
				return err
			}

			// OnConflict updates leave uni.ID zero; fetch the row back.
			var saved model.University
			if err := tx.First(&saved, "name = ?", seed.Name).Error; err != nil {
				return err
			}

			if err := tx.Where("university_id = ?", saved.ID).Delete(&model.BoundaryVertex{}).Error; err != nil {
				return err
			}
			for i, v := range seed.Boundary {
				vertex := model.BoundaryVertex{UniversityID: saved.ID, Seq: i, Lat: v.Lat, Lng: v.Lng}
				if err := tx.Create(&vertex).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to seed campus %q: %w", seed.Name, err)
		}
	}

	r.cache.Flush()
	return nil
}

// ByID returns a university with its boundary, cached.
func (r *Registry) ByID(ctx context.Context, id uint) (*model.University, error) {
	key := fmt.Sprintf("university:%d", id)
	if cached, found := r.cache.Get(key); found {
		return cached.(*model.University), nil
	}

	var uni model.University
	err := r.db.WithContext(ctx).Preload("Boundary", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).First(&uni, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.NotFound("university %d not found", id)
	}
	if err != nil {
		return nil, err
	}

	r.cache.SetDefault(key, &uni)
	return &uni, nil
}

// List returns every registered university with boundaries.
func (r *Registry) List(ctx context.Context) ([]model.University, error) {
	var unis []model.University
	err := r.db.WithContext(ctx).Preload("Boundary", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).Find(&unis).Error
	return unis, err
}

// CampusGeometry converts a university row into the geometry the resolver
// works on. A nil university yields nil, which classifies as outside.
func CampusGeometry(uni *model.University) *geo.Campus {
	if uni == nil {
		return nil
	}
	boundary := make([]geo.Point, len(uni.Boundary))
	for i, v := range uni.Boundary {
		boundary[i] = geo.Point{Lat: v.Lat, Lng: v.Lng}
	}
	return &geo.Campus{
		Center:           geo.Point{Lat: uni.CenterLat, Lng: uni.CenterLng},
		Boundary:         boundary,
		CoverageRadiusKm: uni.CoverageRadiusKm,
	}
}
