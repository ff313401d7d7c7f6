package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"atlas/internal/pkg/database"
	"atlas/internal/pkg/logger"
	inventory "atlas/internal/service/inventory/domain"
	"atlas/internal/service/order/application"
	"atlas/internal/service/order/domain"
	pricing "atlas/internal/service/pricing/domain"
)

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderApplicationService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/orders/create", h.createTempOrder)
	mux.HandleFunc("/orders/get", h.getOrder)
	mux.HandleFunc("/orders/checkout", h.checkout)
	mux.HandleFunc("/orders/voucher", h.applyVoucher)
	mux.HandleFunc("/orders/confirm_delivery", h.confirmDelivery)
	mux.HandleFunc("/orders/confirm_payment", h.confirmPayment)
	mux.HandleFunc("/orders/cancel", h.cancel)
	mux.HandleFunc("/orders/delete", h.softDelete)
	mux.HandleFunc("/payment/webhook", h.paymentWebhook)
}

func (h *OrderHandler) createTempOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	var req application.CreateTempOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := h.service.CreateTempOrder(ctx, &req)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, resp)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	orderID, err := queryUint(r, "orderId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := h.service.FindOrder(ctx, orderID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, resp)
}

func (h *OrderHandler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	var req application.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := h.service.Checkout(ctx, &req)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, resp)
}

func (h *OrderHandler) applyVoucher(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	var req application.ApplyVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := h.service.ApplyVoucher(ctx, &req)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, resp)
}

func (h *OrderHandler) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ConfirmDelivery)
}

func (h *OrderHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ConfirmPayment)
}

func (h *OrderHandler) softDelete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.SoftDelete)
}

func (h *OrderHandler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	orderID, err := queryUint(r, "orderId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	actorID, _ := queryUint(r, "actorId")
	isReStock := r.URL.Query().Get("restock") == "true"
	if err := h.service.CancelOrder(ctx, orderID, isReStock, actorID); err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// paymentWebhook 处理支付网关回调。成功触发确认收款，
// 失败只清除待支付引用。
func (h *OrderHandler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	var payload struct {
		OrderID   uint   `json:"orderId"`
		Status    string `json:"status"`
		Code      string `json:"code"`
		Signature string `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid webhook payload", http.StatusBadRequest)
		return
	}
	succeeded := payload.Status == "PAID"
	if err := h.service.HandlePaymentCallback(ctx, payload.OrderID, succeeded); err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// transition 是无请求体的状态流转入口共用的壳。
func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID, actorID uint) error) {
	ctx := extract(r)
	orderID, err := queryUint(r, "orderId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	actorID, _ := queryUint(r, "actorId")
	if err := fn(ctx, orderID, actorID); err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func extract(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func queryUint(r *http.Request, key string) (uint, error) {
	raw := r.URL.Query().Get(key)
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.Errorf("invalid %s", key)
	}
	return uint(value), nil
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// writeError 把哨兵错误翻译成面向用户的状态码和消息，
// 其余错误按服务器内部错误处理，细节只进日志。
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, pricing.ErrDiscountNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrOrderExpired),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrVoucherInactive),
		errors.Is(err, domain.ErrVoucherNotEligible),
		errors.Is(err, domain.ErrVoucherExhausted),
		errors.Is(err, domain.ErrVoucherAlreadyApplied),
		errors.Is(err, domain.ErrVoucherUsedByCustomer),
		errors.Is(err, domain.ErrVoucherNotCombinable),
		errors.Is(err, inventory.ErrInsufficientStock):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, database.ErrTxTimeout):
		http.Error(w, "operation timed out, please retry", http.StatusServiceUnavailable)
	default:
		logger.Ctx(ctx).Error().Err(err).Msg("order request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
