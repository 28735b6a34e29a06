package port

import (
	"context"

	"ordercore/internal/service/order/domain"
)

// RewardPolicy 计算确认收货时发放的积分。
type RewardPolicy interface {
	Points(ctx context.Context, order *domain.Order) (int64, error)
}

// AffiliateDirectory 根据优惠码找到推广者。
type AffiliateDirectory interface {
	AffiliateForCoupon(ctx context.Context, couponCode string) (affiliateID string, found bool, err error)
}
