// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"ordercore/internal/pkg/identity"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/service/order/application"
	"ordercore/internal/service/order/domain"
)

// OrderHandler 封装了订单服务的 HTTP 处理器。
type OrderHandler struct {
	service *application.OrderApplicationService
}

func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。身份由外层的 identity.Middleware 注入。
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("GET /orders/counts", h.statusCounts)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("GET /orders/{id}/timeline", h.timeline)
	mux.HandleFunc("POST /orders/{id}/transition", h.transition)
	mux.HandleFunc("POST /orders/{id}/confirm-delivery", h.confirmDelivery)
	mux.HandleFunc("POST /orders/{id}/shipment", h.assignShipment)
	mux.HandleFunc("POST /orders/{id}/payment", h.recordPayment)
	mux.HandleFunc("POST /orders/{id}/cancellation", h.fileCancellation)
	mux.HandleFunc("POST /orders/{id}/returns", h.fileReturn)
	mux.HandleFunc("POST /orders/bulk/transition", h.bulkTransition)

	mux.HandleFunc("GET /cancellations", h.listCancellations)
	mux.HandleFunc("POST /cancellations/{id}/approve", h.approveCancellation)
	mux.HandleFunc("POST /cancellations/{id}/reject", h.rejectCancellation)
	mux.HandleFunc("POST /cancellations/bulk/approve", h.bulkApproveCancellations)

	mux.HandleFunc("GET /returns", h.listReturns)
	mux.HandleFunc("POST /returns/{id}/approve", h.approveReturn)
	mux.HandleFunc("POST /returns/{id}/reject", h.rejectReturn)
	mux.HandleFunc("POST /returns/{id}/complete-refund", h.completeRefund)

	mux.HandleFunc("GET /users/{id}/statistics", h.userStatistics)
}

type transitionRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type bulkTransitionRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
	Note   string   `json:"note"`
}

type bulkRequest struct {
	IDs []string `json:"ids"`
}

type shipmentRequest struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"trackingNumber"`
}

type paymentRequest struct {
	Status string `json:"status"`
	Method string `json:"method"`
}

type cancellationRequest struct {
	Reason  string `json:"reason"`
	Comment string `json:"comment"`
}

type returnRequest struct {
	Reason string `json:"reason"`
}

type reviewRequest struct {
	Note string `json:"note"`
}

type approveReturnRequest struct {
	RefundAmount *decimal.Decimal `json:"refundAmount"`
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, err := parseTime(q.Get("from"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := parseTime(q.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.service.ListOrders(r.Context(), actor, application.ListOrdersQuery{
		Status:        q.Get("status"),
		UserID:        q.Get("userId"),
		PaymentStatus: domain.PaymentStatus(q.Get("paymentStatus")),
		Search:        q.Get("search"),
		From:          from,
		To:            to,
		Page:          atoi(q.Get("page")),
		PageSize:      atoi(q.Get("pageSize")),
	})
	respond(w, r, page, err)
}

func (h *OrderHandler) statusCounts(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	counts, err := h.service.StatusCounts(r.Context(), actor)
	respond(w, r, counts, err)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	detail, err := h.service.GetOrder(r.Context(), actor, r.PathValue("id"))
	respond(w, r, detail, err)
}

func (h *OrderHandler) timeline(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	steps, err := h.service.Timeline(r.Context(), actor, r.PathValue("id"))
	respond(w, r, steps, err)
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.service.Transition(r.Context(), actor, r.PathValue("id"), domain.Status(req.Status), req.Note)
	respondOrder(w, r, o, err)
}

func (h *OrderHandler) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	o, err := h.service.ConfirmDelivery(r.Context(), actor, r.PathValue("id"))
	respondOrder(w, r, o, err)
}

func (h *OrderHandler) assignShipment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req shipmentRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.service.AssignShipment(r.Context(), actor, r.PathValue("id"), req.Carrier, req.TrackingNumber)
	respondOrder(w, r, o, err)
}

// recordPayment 是支付系统的回调入口，与 payment-events 消费者等价，只对管理员身份开放。
func (h *OrderHandler) recordPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		writeError(w, r, errors.Wrap(domain.ErrForbidden, "only admins can record payments"))
		return
	}
	var req paymentRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.service.RecordPaymentStatus(r.Context(), domain.PaymentStatusObserved{
		OrderID: r.PathValue("id"),
		Status:  domain.PaymentStatus(req.Status),
		Method:  req.Method,
	})
	respondOrder(w, r, o, err)
}

func (h *OrderHandler) fileCancellation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req cancellationRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.service.FileCancellation(r.Context(), actor, r.PathValue("id"), req.Reason, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, application.ToCancellationView(c))
}

func (h *OrderHandler) fileReturn(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req returnRequest
	if !decode(w, r, &req) {
		return
	}
	ret, err := h.service.FileReturn(r.Context(), actor, r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, application.ToReturnView(ret))
}

func (h *OrderHandler) bulkTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req bulkTransitionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.service.BulkTransition(r.Context(), actor, req.IDs, domain.Status(req.Status), req.Note)
	respond(w, r, res, err)
}

func (h *OrderHandler) listCancellations(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page, err := h.service.ListCancellations(r.Context(), actor, requestQuery(r))
	respond(w, r, page, err)
}

func (h *OrderHandler) approveCancellation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	c, err := h.service.ApproveCancellation(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, application.ToCancellationView(c))
}

func (h *OrderHandler) rejectCancellation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.service.RejectCancellation(r.Context(), actor, r.PathValue("id"), req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, application.ToCancellationView(c))
}

func (h *OrderHandler) bulkApproveCancellations(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req bulkRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.service.BulkApproveCancellations(r.Context(), actor, req.IDs)
	respond(w, r, res, err)
}

func (h *OrderHandler) listReturns(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page, err := h.service.ListReturns(r.Context(), actor, requestQuery(r))
	respond(w, r, page, err)
}

func (h *OrderHandler) approveReturn(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req approveReturnRequest
	if !decode(w, r, &req) {
		return
	}
	ret, err := h.service.ApproveReturn(r.Context(), actor, r.PathValue("id"), req.RefundAmount)
	respondReturn(w, r, ret, err)
}

func (h *OrderHandler) rejectReturn(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}
	ret, err := h.service.RejectReturn(r.Context(), actor, r.PathValue("id"), req.Note)
	respondReturn(w, r, ret, err)
}

func (h *OrderHandler) completeRefund(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	ret, err := h.service.CompleteRefund(r.Context(), actor, r.PathValue("id"))
	respondReturn(w, r, ret, err)
}

func (h *OrderHandler) userStatistics(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	stats, err := h.service.UserStatistics(r.Context(), actor, r.PathValue("id"))
	respond(w, r, stats, err)
}

func requestQuery(r *http.Request) application.RequestQuery {
	q := r.URL.Query()
	return application.RequestQuery{
		Status:   q.Get("status"),
		OrderID:  q.Get("orderId"),
		UserID:   q.Get("userId"),
		Page:     atoi(q.Get("page")),
		PageSize: atoi(q.Get("pageSize")),
	}
}

func requireActor(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "sign in required"})
	}
	return actor, ok
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return false
	}
	return true
}

func parseTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrValidation, "invalid date %q", v)
	}
	return &t, nil
}

func atoi(v string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(v))
	return n
}

func respondOrder(w http.ResponseWriter, r *http.Request, o *domain.Order, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, application.ToOrderView(o))
}

func respondReturn(w http.ResponseWriter, r *http.Request, ret *domain.Return, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, application.ToReturnView(ret))
}

func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type errorBody struct {
	Error string `json:"error"`
}

// StatusCode 把错误类别映射为 HTTP 状态码。
func StatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	if code == http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, errorBody{Error: application.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
