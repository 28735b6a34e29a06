package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"ordercore/internal/pkg/identity"
)

// GormDirectory 读取身份系统的 profiles 表。
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) RecipientExists(ctx context.Context, userID string) (bool, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&ProfileModel{}).Where("id = ?", userID).Count(&n).Error
	if err != nil {
		return false, errors.Wrapf(err, "look up profile %s", userID)
	}
	return n > 0, nil
}

// ActiveAdmins 每次调用都重新查询，不缓存名册。
func (d *GormDirectory) ActiveAdmins(ctx context.Context) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).Model(&ProfileModel{}).
		Where("role = ? AND is_active = ?", string(identity.RoleAdmin), true).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "list active admins")
	}
	return ids, nil
}
