package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"ordercore/internal/pkg/identity"
	"ordercore/internal/service/notification/domain"
)

// GormNotificationRepository 是 domain.Repository 的 GORM 实现。
type GormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// AutoMigrate withExternal 为 true 时一并创建 profiles，只用于测试和本地环境。
func AutoMigrate(db *gorm.DB, withExternal bool) error {
	models := []any{&NotificationModel{}}
	if withExternal {
		models = append(models, &ProfileModel{})
	}
	return errors.Wrap(db.AutoMigrate(models...), "migrate notification tables")
}

func (r *GormNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return errors.Wrapf(r.db.WithContext(ctx).Create(toModel(n)).Error, "insert notification for %s", n.UserID)
}

func (r *GormNotificationRepository) FindByID(ctx context.Context, id string) (*domain.Notification, error) {
	var m NotificationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrNotFound, "notification %s", id)
		}
		return nil, errors.Wrapf(err, "load notification %s", id)
	}
	return toDomain(&m), nil
}

// MarkRead 的条件里带着 status='unread'，已读时影响 0 行，不算错误。
func (r *GormNotificationRepository) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusUnread).
		Updates(map[string]any{"status": string(domain.StatusRead), "read_at": at})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "mark notification %s read", id)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormNotificationRepository) MarkAllRead(ctx context.Context, userID string, role identity.Role, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("user_id = ? AND role = ? AND status = ?", userID, string(role), domain.StatusUnread).
		Updates(map[string]any{"status": string(domain.StatusRead), "read_at": at})
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "mark all notifications of %s read", userID)
	}
	return res.RowsAffected, nil
}

func (r *GormNotificationRepository) List(ctx context.Context, f domain.Filter) ([]domain.Notification, int64, error) {
	q := r.db.WithContext(ctx).Model(&NotificationModel{}).Where("user_id = ?", f.UserID)
	if f.Role != "" {
		q = q.Where("role = ?", string(f.Role))
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Module != "" {
		q = q.Where("module = ?", string(f.Module))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count notifications")
	}
	list := q.Order("created_at DESC")
	if f.Limit > 0 {
		list = list.Offset(f.Offset).Limit(f.Limit)
	}
	var models []NotificationModel
	if err := list.Find(&models).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list notifications")
	}
	out := make([]domain.Notification, 0, len(models))
	for i := range models {
		out = append(out, *toDomain(&models[i]))
	}
	return out, total, nil
}

func (r *GormNotificationRepository) CountUnread(ctx context.Context, userID string, role identity.Role) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("user_id = ? AND role = ? AND status = ?", userID, string(role), domain.StatusUnread).
		Count(&n).Error
	return n, errors.Wrapf(err, "count unread notifications of %s", userID)
}

func toModel(n *domain.Notification) *NotificationModel {
	return &NotificationModel{
		ID:            n.ID,
		UserID:        n.UserID,
		Role:          string(n.Role),
		Module:        string(n.Module),
		Type:          string(n.Type),
		Title:         n.Title,
		Message:       n.Message,
		Status:        string(n.Status),
		Priority:      string(n.Priority),
		ReferenceID:   n.ReferenceID,
		ReferenceType: n.ReferenceType,
		ActionURL:     n.ActionURL,
		ActionLabel:   n.ActionLabel,
		CreatedAt:     n.CreatedAt,
		ReadAt:        n.ReadAt,
	}
}

func toDomain(m *NotificationModel) *domain.Notification {
	return &domain.Notification{
		ID:            m.ID,
		UserID:        m.UserID,
		Role:          identity.Role(m.Role),
		Module:        domain.Module(m.Module),
		Type:          domain.Type(m.Type),
		Title:         m.Title,
		Message:       m.Message,
		Status:        domain.Status(m.Status),
		Priority:      domain.Priority(m.Priority),
		ReferenceID:   m.ReferenceID,
		ReferenceType: m.ReferenceType,
		ActionURL:     m.ActionURL,
		ActionLabel:   m.ActionLabel,
		CreatedAt:     m.CreatedAt,
		ReadAt:        m.ReadAt,
	}
}
