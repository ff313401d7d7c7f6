// internal/service/cart/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/cart/domain"
)

// CartHandler 暴露游客购物车的读写接口。
// 游客没有账号，第一次写购物车时由服务端签发令牌。
type CartHandler struct {
	carts domain.CartRepository
}

func NewCartHandler(carts domain.CartRepository) *CartHandler {
	return &CartHandler{carts: carts}
}

func (h *CartHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/cart/get", h.getCart)
	mux.HandleFunc("/cart/save", h.saveCart)
}

type cartLineRequest struct {
	VariantID uint `json:"variant_id"`
	Quantity  int  `json:"quantity"`
}

type saveCartRequest struct {
	GuestToken string            `json:"guest_token,omitempty"`
	Lines      []cartLineRequest `json:"lines"`
}

type cartResponse struct {
	GuestToken string            `json:"guest_token"`
	Lines      []cartLineRequest `json:"lines"`
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}
	cart, err := h.carts.FindByToken(r.Context(), token)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("find cart")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if cart == nil {
		http.Error(w, "cart not found", http.StatusNotFound)
		return
	}
	writeCart(w, cart)
}

// saveCart 整体替换购物车内容。请求不带令牌时视为新游客，签发新令牌。
func (h *CartHandler) saveCart(w http.ResponseWriter, r *http.Request) {
	var req saveCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			http.Error(w, "quantity must be positive", http.StatusBadRequest)
			return
		}
	}

	cart := &domain.Cart{GuestToken: req.GuestToken}
	if cart.GuestToken == "" {
		cart.GuestToken = uuid.New().String()
	} else {
		existing, err := h.carts.FindByToken(r.Context(), cart.GuestToken)
		if err != nil {
			logger.Ctx(r.Context()).Error().Err(err).Msg("find cart")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if existing != nil {
			cart.ID = existing.ID
		}
	}
	for _, line := range req.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{VariantID: line.VariantID, Quantity: line.Quantity})
	}

	if err := h.carts.Save(r.Context(), cart); err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("save cart")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeCart(w, cart)
}

func writeCart(w http.ResponseWriter, cart *domain.Cart) {
	resp := cartResponse{GuestToken: cart.GuestToken}
	for _, line := range cart.Lines {
		resp.Lines = append(resp.Lines, cartLineRequest{VariantID: line.VariantID, Quantity: line.Quantity})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
