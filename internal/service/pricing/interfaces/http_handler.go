// internal/service/pricing/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/pricing/domain"
)

// DiscountHandler 暴露折扣的只读查询接口，走缓存仓储。
type DiscountHandler struct {
	repo domain.DiscountRepository
}

func NewDiscountHandler(repo domain.DiscountRepository) *DiscountHandler {
	return &DiscountHandler{repo: repo}
}

func (h *DiscountHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/discounts/create", h.createDiscount)
	mux.HandleFunc("/discounts/active", h.activeDiscounts)
	mux.HandleFunc("/discounts/coupon", h.couponByCode)
}

type createDiscountRequest struct {
	Title                       string              `json:"title"`
	Mode                        domain.Mode         `json:"mode"`
	Type                        domain.Type         `json:"type"`
	ValueType                   domain.ValueType    `json:"value_type"`
	Value                       decimal.Decimal     `json:"value"`
	ValueLimitAmount            *decimal.Decimal    `json:"value_limit_amount,omitempty"`
	Entitle                     domain.Entitle      `json:"entitle"`
	Prerequisite                domain.Prerequisite `json:"prerequisite"`
	PrerequisiteValue           decimal.Decimal     `json:"prerequisite_value"`
	CombinesWithProductDiscount bool                `json:"combines_with_product_discount"`
	CombinesWithOrderDiscount   bool                `json:"combines_with_order_discount"`
	UsageLimit                  *int                `json:"usage_limit,omitempty"`
	OnePerCustomer              bool                `json:"one_per_customer"`
	RuleDefinition              string              `json:"rule_definition,omitempty"`
	StartOn                     time.Time           `json:"start_on"`
	EndOn                       *time.Time          `json:"end_on,omitempty"`
	ProductIDs                  []uint              `json:"product_ids,omitempty"`
	VariantIDs                  []uint              `json:"variant_ids,omitempty"`
}

func (h *DiscountHandler) createDiscount(w http.ResponseWriter, r *http.Request) {
	var req createDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	d := &domain.Discount{
		Title:                       req.Title,
		Mode:                        req.Mode,
		Type:                        req.Type,
		ValueType:                   req.ValueType,
		Value:                       req.Value,
		ValueLimitAmount:            req.ValueLimitAmount,
		Entitle:                     req.Entitle,
		Prerequisite:                req.Prerequisite,
		PrerequisiteValue:           req.PrerequisiteValue,
		CombinesWithProductDiscount: req.CombinesWithProductDiscount,
		CombinesWithOrderDiscount:   req.CombinesWithOrderDiscount,
		UsageLimit:                  req.UsageLimit,
		OnePerCustomer:              req.OnePerCustomer,
		RuleDefinition:              req.RuleDefinition,
		Active:                      true,
		StartOn:                     req.StartOn,
		EndOn:                       req.EndOn,
		EntitledProductIDs:          map[uint]struct{}{},
		EntitledVariantIDs:          map[uint]struct{}{},
	}
	for _, id := range req.ProductIDs {
		d.EntitledProductIDs[id] = struct{}{}
	}
	for _, id := range req.VariantIDs {
		d.EntitledVariantIDs[id] = struct{}{}
	}

	if err := h.repo.Create(r.Context(), d); err != nil {
		if errors.Is(err, domain.ErrDuplicateTitle) {
			http.Error(w, "discount title already exists", http.StatusConflict)
			return
		}
		logger.Ctx(r.Context()).Error().Err(err).Msg("create discount")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, d)
}

// activeDiscounts 列出指定模式与类型的当前有效折扣。
// mode 默认 PROMOTION，type 默认 PRODUCT。
func (h *DiscountHandler) activeDiscounts(w http.ResponseWriter, r *http.Request) {
	mode := domain.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = domain.ModePromotion
	}
	dtype := domain.Type(r.URL.Query().Get("type"))
	if dtype == "" {
		dtype = domain.TypeProduct
	}

	discounts, err := h.repo.ActiveDiscounts(r.Context(), mode, dtype)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("list active discounts")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, discounts)
}

func (h *DiscountHandler) couponByCode(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}
	coupon, err := h.repo.FindCouponByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrDiscountNotFound) {
			http.Error(w, "coupon not found", http.StatusNotFound)
			return
		}
		logger.Ctx(r.Context()).Error().Err(err).Str("code", code).Msg("find coupon")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, coupon)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
