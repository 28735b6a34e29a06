package port

import (
	"context"
)

// InventoryService 是库存服务的出站端口。
type InventoryService interface {
	// ReleaseStock 释放订单预占的库存，items 为 productID -> 数量。
	ReleaseStock(ctx context.Context, orderID string, items map[string]int) error
}
