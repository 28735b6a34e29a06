package adapter

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"ordercore/internal/service/order/infrastructure"
)

// GormAffiliateDirectory 通过营销系统的 coupons 表找到优惠码对应的推广者。
type GormAffiliateDirectory struct {
	db *gorm.DB
}

func NewGormAffiliateDirectory(db *gorm.DB) *GormAffiliateDirectory {
	return &GormAffiliateDirectory{db: db}
}

func (d *GormAffiliateDirectory) AffiliateForCoupon(ctx context.Context, couponCode string) (string, bool, error) {
	if couponCode == "" {
		return "", false, nil
	}
	var coupon infrastructure.CouponModel
	err := d.db.WithContext(ctx).Where("code = ?", couponCode).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "look up coupon %s", couponCode)
	}
	return coupon.AffiliateUserID, coupon.AffiliateUserID != "", nil
}
