// Package mqtest 提供内存版的 mq.Reader 和 mq.Writer，供测试使用。
package mqtest

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Writer 记录写入的消息。Err 非空时每次写入都返回它。
type Writer struct {
	mu       sync.Mutex
	messages []kafka.Message
	Err      error
}

func (w *Writer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *Writer) Messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]kafka.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// Reader 按顺序返回预先放入的消息，取完后阻塞直到 ctx 结束。
type Reader struct {
	queue     chan kafka.Message
	mu        sync.Mutex
	committed []kafka.Message
	closed    bool
}

func NewReader(msgs ...kafka.Message) *Reader {
	r := &Reader{queue: make(chan kafka.Message, len(msgs)+16)}
	for i, m := range msgs {
		if m.Offset == 0 {
			m.Offset = int64(i)
		}
		r.queue <- m
	}
	return r
}

// Push 追加一条消息。
func (r *Reader) Push(msg kafka.Message) {
	r.queue <- msg
}

func (r *Reader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.queue:
		return m, nil
	}
}

func (r *Reader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *Reader) Committed() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]kafka.Message, len(r.committed))
	copy(out, r.committed)
	return out
}

func (r *Reader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *Reader) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
