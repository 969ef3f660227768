package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Directory resolves roles and contact details for users.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// ResolveRoles returns every role held by userID.
func (d *Directory) ResolveRoles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	var rows []UserRole
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("role").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve roles: %w", err)
	}
	roles := make([]Role, 0, len(rows))
	for _, r := range rows {
		roles = append(roles, r.Role)
	}
	return roles, nil
}

// IsInRole reports whether userID holds role.
func (d *Directory) IsInRole(ctx context.Context, userID uuid.UUID, role Role) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&UserRole{}).
		Where("user_id = ? AND role = ?", userID, role).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return count > 0, nil
}

// Grant gives role to userID. Granting an existing role is a no-op.
func (d *Directory) Grant(ctx context.Context, userID uuid.UUID, role Role) error {
	row := UserRole{UserID: userID, Role: role}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}
	return nil
}

// Revoke removes role from userID.
func (d *Directory) Revoke(ctx context.Context, userID uuid.UUID, role Role) error {
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND role = ?", userID, role).
		Delete(&UserRole{}).Error
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return nil
}

// Contact returns the contact record of userID, nil when none is stored.
func (d *Directory) Contact(ctx context.Context, userID uuid.UUID) (*Contact, error) {
	var c Contact
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	return &c, nil
}

// SaveContact inserts or replaces a contact record.
func (d *Directory) SaveContact(ctx context.Context, c *Contact) error {
	if err := d.db.WithContext(ctx).Save(c).Error; err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}
	return nil
}
