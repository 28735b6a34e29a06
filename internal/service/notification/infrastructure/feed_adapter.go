package infrastructure

import (
	"context"

	"ordercore/internal/pkg/feed"
	"ordercore/internal/service/notification/domain"
)

// FeedPublisher 把新建的通知只推给收件人本人。
type FeedPublisher struct {
	publisher *feed.Publisher
}

func NewFeedPublisher(publisher *feed.Publisher) *FeedPublisher {
	return &FeedPublisher{publisher: publisher}
}

type notificationPayload struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Module      string `json:"module"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Priority    string `json:"priority"`
	ReferenceID string `json:"referenceId,omitempty"`
	ActionURL   string `json:"actionUrl,omitempty"`
}

func (p *FeedPublisher) NotificationCreated(ctx context.Context, n *domain.Notification) error {
	env, err := feed.NewEnvelope(feed.KindNotification, n.UserID, notificationPayload{
		ID:          n.ID,
		Type:        string(n.Type),
		Module:      string(n.Module),
		Title:       n.Title,
		Message:     n.Message,
		Priority:    string(n.Priority),
		ReferenceID: n.ReferenceID,
		ActionURL:   n.ActionURL,
	}, n.CreatedAt)
	if err != nil {
		return err
	}
	env.UserIDs = []string{n.UserID}
	return p.publisher.Publish(ctx, env)
}
