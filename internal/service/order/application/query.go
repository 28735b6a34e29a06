package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ordercore/internal/pkg/identity"
	"ordercore/internal/service/order/domain"
	"ordercore/internal/service/order/domain/projection"
)

// 读模型每次读取时从存储重新计算，不缓存。

// ListOrders 非管理员只能看到自己的订单，传入的 UserID 会被覆盖。
func (s *OrderApplicationService) ListOrders(ctx context.Context, actor identity.Actor, q ListOrdersQuery) (projection.Page[OrderView], error) {
	ctx, span := s.tracer.Start(ctx, "app.ListOrders", trace.WithAttributes(attribute.String("filter.status", q.Status)))
	defer span.End()

	if actor.Anonymous() {
		return projection.Page[OrderView]{}, errors.Wrap(domain.ErrForbidden, "sign in to view orders")
	}
	if q.Status != "" && q.Status != domain.DisplayCancellationRequested && !domain.Status(q.Status).Valid() {
		return projection.Page[OrderView]{}, errors.Wrapf(domain.ErrValidation, "unknown status filter %q", q.Status)
	}
	if q.PaymentStatus != "" && !q.PaymentStatus.Valid() {
		return projection.Page[OrderView]{}, errors.Wrapf(domain.ErrValidation, "unknown payment status filter %q", q.PaymentStatus)
	}
	userID := q.UserID
	if !actor.IsAdmin() {
		userID = actor.UserID
	}
	offset, limit, page := projection.NormalizePage(q.Page, q.PageSize)
	orders, total, err := s.reader.List(ctx, domain.ListFilter{
		Status:        q.Status,
		UserID:        userID,
		PaymentStatus: q.PaymentStatus,
		Search:        q.Search,
		From:          q.From,
		To:            q.To,
		Offset:        offset,
		Limit:         limit,
	})
	if err != nil {
		span.RecordError(err)
		return projection.Page[OrderView]{}, err
	}
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, ToOrderView(&orders[i]))
	}
	return projection.NewPage(views, total, page, limit), nil
}

// GetOrder 返回订单详情和时间线，只有本人和管理员可见。
func (s *OrderApplicationService) GetOrder(ctx context.Context, actor identity.Actor, orderID string) (*OrderDetail, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	o, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	timeline, err := s.timeline(ctx, o)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{OrderView: ToOrderView(o), Timeline: timeline}, nil
}

func (s *OrderApplicationService) Timeline(ctx context.Context, actor identity.Actor, orderID string) ([]projection.TimelineStep, error) {
	o, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	return s.timeline(ctx, o)
}

func (s *OrderApplicationService) visibleOrder(ctx context.Context, actor identity.Actor, orderID string) (*domain.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !o.OwnedBy(actor.UserID) {
		// 对非本人隐藏订单是否存在
		return nil, errors.Wrapf(domain.ErrNotFound, "order %s", orderID)
	}
	return o, nil
}

func (s *OrderApplicationService) timeline(ctx context.Context, o *domain.Order) ([]projection.TimelineStep, error) {
	entries, err := s.orders.History(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return projection.Timeline(o, entries), nil
}

// StatusCounts 管理员看全部，其他人看自己的。
func (s *OrderApplicationService) StatusCounts(ctx context.Context, actor identity.Actor) (projection.StatusCounts, error) {
	ctx, span := s.tracer.Start(ctx, "app.StatusCounts")
	defer span.End()

	if actor.Anonymous() {
		return nil, errors.Wrap(domain.ErrForbidden, "sign in to view orders")
	}
	userID := actor.UserID
	if actor.IsAdmin() {
		userID = ""
	}
	orders, err := s.reader.Summaries(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return projection.CountByStatus(orders), nil
}

// UserStatistics 管理员可以查看任意顾客，顾客只能查看自己。
func (s *OrderApplicationService) UserStatistics(ctx context.Context, actor identity.Actor, userID string) (projection.UserStats, error) {
	ctx, span := s.tracer.Start(ctx, "app.UserStatistics", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if userID == "" {
		userID = actor.UserID
	}
	if actor.Anonymous() || (!actor.IsAdmin() && userID != actor.UserID) {
		return projection.UserStats{}, errors.Wrap(domain.ErrForbidden, "statistics are only visible to their owner")
	}
	orders, err := s.reader.Summaries(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return projection.UserStats{}, err
	}
	return projection.UserStatistics(userID, orders), nil
}

func (s *OrderApplicationService) ListCancellations(ctx context.Context, actor identity.Actor, q RequestQuery) (projection.Page[CancellationView], error) {
	filter, page, err := requestFilter(actor, q)
	if err != nil {
		return projection.Page[CancellationView]{}, err
	}
	reqs, total, err := s.cancellations.ListCancellations(ctx, filter)
	if err != nil {
		return projection.Page[CancellationView]{}, err
	}
	views := make([]CancellationView, 0, len(reqs))
	for i := range reqs {
		views = append(views, ToCancellationView(&reqs[i]))
	}
	return projection.NewPage(views, total, page, filter.Limit), nil
}

func (s *OrderApplicationService) ListReturns(ctx context.Context, actor identity.Actor, q RequestQuery) (projection.Page[ReturnView], error) {
	filter, page, err := requestFilter(actor, q)
	if err != nil {
		return projection.Page[ReturnView]{}, err
	}
	rets, total, err := s.returns.ListReturns(ctx, filter)
	if err != nil {
		return projection.Page[ReturnView]{}, err
	}
	views := make([]ReturnView, 0, len(rets))
	for i := range rets {
		views = append(views, ToReturnView(&rets[i]))
	}
	return projection.NewPage(views, total, page, filter.Limit), nil
}

func requestFilter(actor identity.Actor, q RequestQuery) (domain.RequestFilter, int, error) {
	if actor.Anonymous() {
		return domain.RequestFilter{}, 0, errors.Wrap(domain.ErrForbidden, "sign in to view requests")
	}
	userID := q.UserID
	if !actor.IsAdmin() {
		userID = actor.UserID
	}
	offset, limit, page := projection.NormalizePage(q.Page, q.PageSize)
	return domain.RequestFilter{
		Status:  q.Status,
		OrderID: q.OrderID,
		UserID:  userID,
		Offset:  offset,
		Limit:   limit,
	}, page, nil
}
