// Package client 是看板侧的订单投影。
// 用户操作先作用在本地投影上，服务端结果回来后一律以服务端为准；失败时回滚，
// 定期的 Resync 是最终的纠偏手段。
package client

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"ordercore/internal/pkg/logger"
	"ordercore/internal/service/order/application"
	"ordercore/internal/service/order/domain"
)

// ErrCommandPending 表示同一订单上还有未返回的命令。两次本地修改之间必须经过一次服务端往返。
var ErrCommandPending = errors.New("another change to this order is still in flight")

// Reader 是投影读取权威状态的方式。
type Reader interface {
	Get(ctx context.Context, orderID string) (application.OrderView, error)
	List(ctx context.Context) ([]application.OrderView, error)
}

// Command 是一次用户意图。Optimistic 立刻作用在本地副本上；Execute 调用服务端，
// 返回 nil 视图时由 Store 重新读取该订单。
type Command struct {
	OrderID    string
	Optimistic func(v *application.OrderView)
	Execute    func(ctx context.Context) (*application.OrderView, error)
}

type entry struct {
	confirmed application.OrderView // 最近一次服务端确认的状态
	view      application.OrderView // 展示用，可能包含未确认的本地修改
	pending   bool
}

type Store struct {
	reader Reader
	mu     sync.Mutex
	orders map[string]*entry
}

func NewStore(reader Reader) *Store {
	return &Store{reader: reader, orders: make(map[string]*entry)}
}

// Get 返回展示用的订单视图，pending 表示视图里有未确认的修改。
func (s *Store) Get(orderID string) (view application.OrderView, pending, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.orders[orderID]
	if !ok {
		return application.OrderView{}, false, false
	}
	return cloneView(e.view), e.pending, true
}

// Orders 按创建时间倒序返回全部视图。
func (s *Store) Orders() []application.OrderView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]application.OrderView, 0, len(s.orders))
	for _, e := range s.orders {
		out = append(out, cloneView(e.view))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Submit 先应用本地修改，再等待服务端结果。成功时用服务端状态替换本地视图，
// 失败时回滚到最近确认的状态；冲突类错误说明本地视图已过期，会顺带重新读取。
func (s *Store) Submit(ctx context.Context, cmd Command) (application.OrderView, error) {
	if err := s.begin(cmd); err != nil {
		return application.OrderView{}, err
	}

	view, err := cmd.Execute(ctx)
	if err == nil && view == nil {
		var fresh application.OrderView
		if fresh, err = s.reader.Get(ctx, cmd.OrderID); err == nil {
			view = &fresh
		}
	}
	if err != nil {
		s.rollback(ctx, cmd.OrderID, err)
		return application.OrderView{}, err
	}
	s.commit(*view)
	return cloneView(*view), nil
}

func (s *Store) begin(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.orders[cmd.OrderID]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "order %s is not loaded", cmd.OrderID)
	}
	if e.pending {
		return errors.Wrapf(ErrCommandPending, "order %s", cmd.OrderID)
	}
	e.pending = true
	if cmd.Optimistic != nil {
		cmd.Optimistic(&e.view)
	}
	return nil
}

func (s *Store) commit(v application.OrderView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[v.ID] = &entry{confirmed: cloneView(v), view: cloneView(v)}
}

func (s *Store) rollback(ctx context.Context, orderID string, cause error) {
	s.mu.Lock()
	if e, ok := s.orders[orderID]; ok {
		e.view = cloneView(e.confirmed)
		e.pending = false
	}
	s.mu.Unlock()

	if !stale(cause) {
		return
	}
	fresh, err := s.reader.Get(ctx, orderID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.mu.Lock()
		delete(s.orders, orderID)
		s.mu.Unlock()
	case err != nil:
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("failed to refresh stale order, waiting for resync")
	default:
		s.refresh(fresh)
	}
}

// stale 报告错误是否意味着本地看到的状态已经落后于服务端。
func stale(err error) bool {
	return errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrNotFound)
}

// refresh 更新确认状态；有命令在途时不覆盖展示视图，等命令返回再决定。
func (s *Store) refresh(v application.OrderView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.orders[v.ID]
	if !ok {
		s.orders[v.ID] = &entry{confirmed: cloneView(v), view: cloneView(v)}
		return
	}
	e.confirmed = cloneView(v)
	if !e.pending {
		e.view = cloneView(v)
	}
}

// Resync 从服务端全量重建投影。服务端已不存在且没有命令在途的订单会被移除。
func (s *Store) Resync(ctx context.Context) error {
	views, err := s.reader.List(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(views))
	for _, v := range views {
		seen[v.ID] = struct{}{}
		s.refresh(v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.orders {
		if _, ok := seen[id]; !ok && !e.pending {
			delete(s.orders, id)
		}
	}
	return nil
}

// ApplyChange 用实时变更流里的状态字段更新已加载的订单，未加载的订单忽略，等下一次 Resync。
func (s *Store) ApplyChange(change domain.OrderChanged) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.orders[change.OrderID]
	if !ok {
		return
	}
	apply := func(v *application.OrderView) {
		v.Status = change.Status
		v.DisplayStatus = change.DisplayStatus
		v.CancellationStatus = change.CancellationStatus
		v.PaymentStatus = change.PaymentStatus
	}
	apply(&e.confirmed)
	if !e.pending {
		apply(&e.view)
	}
}

func cloneView(v application.OrderView) application.OrderView {
	out := v
	out.Items = append([]application.ItemView(nil), v.Items...)
	if v.Shipment != nil {
		sh := *v.Shipment
		out.Shipment = &sh
	}
	return out
}
