// internal/service/report/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/report/application"
)

// ReportHandler 暴露销售报表查询接口。
type ReportHandler struct {
	service *application.ReportService
}

func NewReportHandler(service *application.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

func (h *ReportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/reports/sales", h.salesSummary)
}

// salesSummary 处理 GET /reports/sales?range=last7days
// 或 range=custom&min=2026-01-01&max=2026-02-01。
func (h *ReportHandler) salesSummary(w http.ResponseWriter, r *http.Request) {
	q := application.ReportQuery{
		Range: application.RangeToken(r.URL.Query().Get("range")),
	}
	if v := r.URL.Query().Get("min"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid min date", http.StatusBadRequest)
			return
		}
		q.Min = t
	}
	if v := r.URL.Query().Get("max"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid max date", http.StatusBadRequest)
			return
		}
		q.Max = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		q.Limit = limit
	}

	report, err := h.service.SalesSummary(r.Context(), q)
	if err != nil {
		if errors.Is(err, application.ErrInvalidRange) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Ctx(r.Context()).Error().Err(err).Msg("sales summary query")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
