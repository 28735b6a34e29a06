package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"ordercore/internal/pkg/httpclient"
	"ordercore/internal/pkg/identity"
	"ordercore/internal/service/order/application"
	"ordercore/internal/service/order/domain"
	"ordercore/internal/service/order/domain/projection"
)

// HTTPBackend 通过订单服务的 HTTP 接口实现 Reader 和 Commands，以 actor 的身份调用。
type HTTPBackend struct {
	client  *httpclient.Client
	baseURL string
	header  http.Header
}

func NewHTTPBackend(client *httpclient.Client, baseURL string, actor identity.Actor) *HTTPBackend {
	h := http.Header{}
	h.Set(identity.HeaderUserID, actor.UserID)
	h.Set(identity.HeaderUserRole, string(actor.Role))
	return &HTTPBackend{client: client, baseURL: strings.TrimRight(baseURL, "/"), header: h}
}

func (b *HTTPBackend) Get(ctx context.Context, orderID string) (application.OrderView, error) {
	var detail application.OrderDetail
	err := b.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &detail)
	return detail.OrderView, err
}

// List 逐页读取全部可见订单。
func (b *HTTPBackend) List(ctx context.Context) ([]application.OrderView, error) {
	var all []application.OrderView
	for page := 1; ; page++ {
		var p projection.Page[application.OrderView]
		path := "/orders?page=" + strconv.Itoa(page) + "&pageSize=" + strconv.Itoa(projection.MaxPageSize)
		if err := b.do(ctx, http.MethodGet, path, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Items...)
		if page >= p.TotalPages || len(p.Items) == 0 {
			return all, nil
		}
	}
}

func (b *HTTPBackend) Transition(ctx context.Context, orderID string, target domain.Status, note string) (*application.OrderView, error) {
	var v application.OrderView
	body := map[string]string{"status": string(target), "note": note}
	if err := b.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/transition", body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (b *HTTPBackend) ConfirmDelivery(ctx context.Context, orderID string) (*application.OrderView, error) {
	var v application.OrderView
	if err := b.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/confirm-delivery", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (b *HTTPBackend) FileCancellation(ctx context.Context, orderID, reason, comment string) error {
	body := map[string]string{"reason": reason, "comment": comment}
	return b.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/cancellation", body, nil)
}

func (b *HTTPBackend) ApproveCancellation(ctx context.Context, requestID string) error {
	return b.do(ctx, http.MethodPost, "/cancellations/"+url.PathEscape(requestID)+"/approve", nil, nil)
}

func (b *HTTPBackend) RejectCancellation(ctx context.Context, requestID, note string) error {
	return b.do(ctx, http.MethodPost, "/cancellations/"+url.PathEscape(requestID)+"/reject", map[string]string{"note": note}, nil)
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body, out any) error {
	err := b.client.DoJSON(ctx, method, b.baseURL+path, b.header, body, out)
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	return errors.Wrap(classify(statusErr.Status), statusErr.Message)
}

// classify 是服务端错误映射的逆映射。
func classify(status int) error {
	switch status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnprocessableEntity:
		return domain.ErrInvalidTransition
	case http.StatusConflict:
		return domain.ErrConflict
	case http.StatusForbidden, http.StatusUnauthorized:
		return domain.ErrForbidden
	case http.StatusBadRequest:
		return domain.ErrValidation
	}
	return errors.Errorf("unexpected status %d", status)
}
