// Package directory resolves contact references and staff identities.
// The safety core treats recipient ids as opaque; this is the one place
// that knows how a trusted-contact reference maps to an account.
package directory

import (
	"context"

	"gorm.io/gorm"

	"campus-guardian-backend/internal/model"
)

// Directory is the audience-resolution collaborator used by the fanout
// and the managers.
type Directory interface {
	// ResolveContacts maps contact references to notifiable account ids.
	// Unresolvable references are skipped, not errors.
	ResolveContacts(ctx context.Context, contactIDs []string) ([]string, error)
	// ContactsOf returns a user's emergency contacts.
	ContactsOf(ctx context.Context, ownerID string) ([]model.EmergencyContact, error)
	// StaffIDs returns every staff and security account id.
	StaffIDs(ctx context.Context) ([]string, error)
	// UniversityOf returns the id of the user's registered university,
	// zero when the user has none.
	UniversityOf(ctx context.Context, userID string) (uint, error)
}

type gormDirectory struct {
	db *gorm.DB
}

// NewGorm creates a directory backed by the users and contacts tables.
func NewGorm(db *gorm.DB) Directory {
	return &gormDirectory{db: db}
}

func (d *gormDirectory) ResolveContacts(ctx context.Context, contactIDs []string) ([]string, error) {
	if len(contactIDs) == 0 {
		return nil, nil
	}

	var contacts []model.EmergencyContact
	if err := d.db.WithContext(ctx).Where("id IN ?", contactIDs).Find(&contacts).Error; err != nil {
		return nil, err
	}

	accountIDs := make([]string, 0, len(contacts))
	for _, c := range contacts {
		if c.AccountID != "" {
			accountIDs = append(accountIDs, c.AccountID)
		}
	}
	return accountIDs, nil
}

func (d *gormDirectory) ContactsOf(ctx context.Context, ownerID string) ([]model.EmergencyContact, error) {
	var contacts []model.EmergencyContact
	err := d.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&contacts).Error
	return contacts, err
}

func (d *gormDirectory) StaffIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).Model(&model.User{}).
		Where("role IN ?", []model.Role{model.RoleStaff, model.RoleSecurity}).
		Pluck("id", &ids).Error
	return ids, err
}

func (d *gormDirectory) UniversityOf(ctx context.Context, userID string) (uint, error) {
	var user model.User
	err := d.db.WithContext(ctx).Select("university_id").First(&user, "id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return user.UniversityID, nil
}
