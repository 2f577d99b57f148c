package directory

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campus-guardian-backend/config"
	"campus-guardian-backend/internal/model"
)

// Seed upserts the configured directory accounts. Campus names in the
// seed list are resolved against the universities table, so the campus
// registry must be seeded first.
func Seed(ctx context.Context, db *gorm.DB, seeds []config.UserSeed) error {
	if len(seeds) == 0 {
		return nil
	}

	campusIDs := make(map[string]uint)
	var unis []model.University
	if err := db.WithContext(ctx).Find(&unis).Error; err != nil {
		return err
	}
	for _, u := range unis {
		campusIDs[u.Name] = u.ID
	}

	users := make([]model.User, 0, len(seeds))
	for _, s := range seeds {
		users = append(users, model.User{
			ID:           s.ID,
			DisplayName:  s.Name,
			Role:         model.Role(s.Role),
			UniversityID: campusIDs[s.Campus],
		})
	}

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "role", "university_id"}),
	}).Create(&users).Error
}
