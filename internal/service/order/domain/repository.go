// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 所有写操作都是 "读取-校验-带条件写回" 的单事务：写回的 WHERE 子句带上读取时的状态，
// 竞争失败的一方得到 ErrConflict，而不是覆盖赢家的结果。
type OrderRepository interface {
	// FindByID 根据 ID 查找订单，连同明细与运单。
	FindByID(ctx context.Context, id string) (*Order, error)

	// Update 在事务内加载订单并执行 mutate，再以加载时的状态为条件写回。
	// 主状态变化时在同一事务内追加一条账本记录，note 作为该记录的备注。
	Update(ctx context.Context, id, note string, mutate func(o *Order) error) (*Order, error)

	// History 返回订单的状态账本，按时间升序。
	History(ctx context.Context, orderID string) ([]HistoryEntry, error)
}

// CancellationRepository 负责取消申请的二级状态机。
type CancellationRepository interface {
	// FileCancellation 先插入申请（同一订单只允许一条 pending），再带条件地标记订单。
	FileCancellation(ctx context.Context, orderID string, build func(o *Order) (*CancellationRequest, error)) (*CancellationRequest, *Order, error)

	// ReviewCancellation 以 status='pending' 为条件更新申请，并在同一事务内写回订单。
	ReviewCancellation(ctx context.Context, requestID, note string, review func(r *CancellationRequest, o *Order) error) (*CancellationRequest, *Order, error)

	FindCancellation(ctx context.Context, id string) (*CancellationRequest, error)
	ListCancellations(ctx context.Context, filter RequestFilter) ([]CancellationRequest, int64, error)
}

// ReturnRepository 负责退货记录。
type ReturnRepository interface {
	FileReturn(ctx context.Context, orderID string, build func(o *Order) (*Return, error)) (*Return, *Order, error)

	// ReviewReturn 以加载时的退货状态为条件写回，用于批准、驳回和完成退款。
	ReviewReturn(ctx context.Context, returnID, note string, review func(r *Return, o *Order) error) (*Return, *Order, error)

	FindReturn(ctx context.Context, id string) (*Return, error)
	ListReturns(ctx context.Context, filter RequestFilter) ([]Return, int64, error)
}

// OrderReader 是读模型使用的只读查询。
type OrderReader interface {
	List(ctx context.Context, filter ListFilter) ([]Order, int64, error)
	// Summaries 返回不含明细的订单，userID 为空时返回全部。
	Summaries(ctx context.Context, userID string) ([]Order, error)
	HistorySince(ctx context.Context, since time.Time) ([]HistoryEntry, error)
}

// ListFilter 是订单列表的过滤与分页条件。
// Status 除了主状态外还接受派生标签 cancellation_requested。
type ListFilter struct {
	Status        string
	UserID        string
	PaymentStatus PaymentStatus
	Search        string
	From          *time.Time
	To            *time.Time
	Offset        int
	Limit         int
}

// RequestFilter 用于管理员查看取消/退货申请。
type RequestFilter struct {
	Status  string
	OrderID string
	UserID  string
	Offset  int
	Limit   int
}
