package adapter

import (
	"context"
	"strings"

	"ordercore/internal/pkg/httpclient"
)

const (
	inventoryService     = "inventory-service"
	inventoryReleasePath = "/release_stock"
)

type releaseStockRequest struct {
	OrderID string         `json:"orderId"`
	Items   map[string]int `json:"items"`
}

// InventoryHTTPAdapter 实现了 port.InventoryService。
// baseURL 非空时直接调用，否则通过注册中心发现 inventory-service。
type InventoryHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

func NewInventoryHTTPAdapter(client *httpclient.Client, baseURL string) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *InventoryHTTPAdapter) ReleaseStock(ctx context.Context, orderID string, items map[string]int) error {
	body := releaseStockRequest{OrderID: orderID, Items: items}
	if a.baseURL != "" {
		return a.client.PostJSON(ctx, a.baseURL+inventoryReleasePath, body)
	}
	return a.client.CallService(ctx, inventoryService, inventoryReleasePath, body)
}
