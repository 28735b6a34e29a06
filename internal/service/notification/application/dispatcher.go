// internal/service/notification/application/dispatcher.go
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ordercore/internal/pkg/identity"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/metrics"
	"ordercore/internal/service/notification/domain"
)

// Dispatcher 负责创建通知和收件箱的已读管理。
type Dispatcher struct {
	repo      domain.Repository
	directory domain.Directory
	publisher domain.Publisher // 可以为 nil
	tracer    trace.Tracer
	now       func() time.Time
}

func NewDispatcher(repo domain.Repository, directory domain.Directory, publisher domain.Publisher, tracer trace.Tracer) *Dispatcher {
	return &Dispatcher{repo: repo, directory: directory, publisher: publisher, tracer: tracer, now: time.Now}
}

// WithClock 替换时钟，测试用。
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Dispatch 插入一条通知。收件人不存在时返回 ErrRecipientNotFound。
func (d *Dispatcher) Dispatch(ctx context.Context, e domain.Event) (*domain.Notification, error) {
	ctx, span := d.tracer.Start(ctx, "notification.Dispatch", trace.WithAttributes(
		attribute.String("notification.type", string(e.Type)),
		attribute.String("notification.recipient", e.RecipientID),
	))
	defer span.End()

	n, err := d.dispatch(ctx, e)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		return nil, err
	}
	return n, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, e domain.Event) (*domain.Notification, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	exists, err := d.directory.RecipientExists(ctx, e.RecipientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Wrapf(domain.ErrRecipientNotFound, "user %s", e.RecipientID)
	}

	n := domain.New(uuid.NewString(), e, d.now().UTC())
	if err := d.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	metrics.NotificationsDispatched.WithLabelValues(string(n.Type)).Inc()

	if d.publisher != nil {
		if err := d.publisher.NotificationCreated(ctx, n); err != nil {
			metrics.FeedPublishFailures.WithLabelValues("notification").Inc()
			logger.Ctx(ctx).Warn().Err(err).Str("notification_id", n.ID).Msg("failed to publish notification to change feed")
		}
	}
	return n, nil
}

// BroadcastAdmins 在投递时读取当前的活跃管理员名册，每人一条。
// 单个管理员失败不影响其他人，返回成功条数和第一个错误。
func (d *Dispatcher) BroadcastAdmins(ctx context.Context, e domain.Event) (int, error) {
	ctx, span := d.tracer.Start(ctx, "notification.BroadcastAdmins", trace.WithAttributes(
		attribute.String("notification.type", string(e.Type)),
	))
	defer span.End()

	admins, err := d.directory.ActiveAdmins(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	sent := 0
	var firstErr error
	for _, adminID := range admins {
		e.RecipientID = adminID
		e.Role = identity.RoleAdmin
		if _, err := d.dispatch(ctx, e); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}
	span.SetAttributes(attribute.Int("notification.admins", len(admins)), attribute.Int("notification.sent", sent))
	return sent, firstErr
}

// MarkRead 只允许收件人本人操作；已读时是 no-op。
func (d *Dispatcher) MarkRead(ctx context.Context, actor identity.Actor, id string) (*domain.Notification, error) {
	n, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != actor.UserID {
		return nil, errors.Wrapf(domain.ErrForbidden, "notification %s", id)
	}
	if n.Status == domain.StatusRead {
		return n, nil
	}
	at := d.now().UTC()
	flipped, err := d.repo.MarkRead(ctx, id, at)
	if err != nil {
		return nil, err
	}
	if flipped {
		n.Status = domain.StatusRead
		n.ReadAt = &at
		return n, nil
	}
	// 并发的另一次调用已经标记过
	return d.repo.FindByID(ctx, id)
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, actor identity.Actor) (int64, error) {
	return d.repo.MarkAllRead(ctx, actor.UserID, actor.Role, d.now().UTC())
}

func (d *Dispatcher) List(ctx context.Context, actor identity.Actor, status domain.Status, module domain.Module, offset, limit int) ([]domain.Notification, int64, error) {
	return d.repo.List(ctx, domain.Filter{
		UserID: actor.UserID,
		Role:   actor.Role,
		Status: status,
		Module: module,
		Offset: offset,
		Limit:  limit,
	})
}

func (d *Dispatcher) UnreadCount(ctx context.Context, actor identity.Actor) (int64, error) {
	return d.repo.CountUnread(ctx, actor.UserID, actor.Role)
}
