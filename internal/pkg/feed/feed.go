// Package feed 定义实时变更流的消息信封，订单写入和新通知都经由它推给看板。
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"ordercore/internal/pkg/mq"
)

type Kind string

const (
	KindOrder        Kind = "order"
	KindNotification Kind = "notification"
)

// Envelope 是变更流上的一条消息。
// UserIDs 中的用户会收到推送；Admins 为 true 时所有在线管理员也会收到。
type Envelope struct {
	Kind       Kind            `json:"kind"`
	Key        string          `json:"key"`
	UserIDs    []string        `json:"userIds,omitempty"`
	Admins     bool            `json:"admins"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope 序列化 payload。
func NewEnvelope(kind Kind, key string, payload any, at time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "marshal %s payload", kind)
	}
	return Envelope{Kind: kind, Key: key, OccurredAt: at, Payload: raw}, nil
}

func (e Envelope) Addressed(userID string) bool {
	for _, id := range e.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Publisher 以 Key 为分区键写 Kafka。
type Publisher struct {
	writer mq.Writer
}

func NewPublisher(w mq.Writer) *Publisher {
	return &Publisher{writer: w}
}

func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal feed envelope")
	}
	if err := mq.ProduceMessage(ctx, p.writer, []byte(env.Key), body); err != nil {
		return errors.Wrapf(err, "publish %s %s", env.Kind, env.Key)
	}
	return nil
}

func Decode(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, errors.Wrap(err, "decode feed envelope")
	}
	return env, nil
}
