package procurement

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/backend-warung/internal/common"
)

// Handler exposes procurement endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RecordPurchase handles POST /api/v1/purchases.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.Actor(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "actor id is required", nil)
		return
	}
	var in PurchaseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	p, err := h.service.RecordPurchase(r.Context(), in, actor)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// RecordUsage handles POST /api/v1/usages.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.Actor(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "actor id is required", nil)
		return
	}
	var in UsageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	u, err := h.service.RecordUsage(r.Context(), in, actor)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": u})
}

// ListPurchases handles GET /api/v1/purchases.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	items, total, err := h.service.ListPurchases(r.Context(), filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// ListUsages handles GET /api/v1/usages.
func (h *Handler) ListUsages(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	items, total, err := h.service.ListUsages(r.Context(), filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func parseFilter(w http.ResponseWriter, r *http.Request) (ListFilter, bool) {
	page, perPage := common.ParsePagination(r, 20)
	filter := ListFilter{
		Limit:  perPage,
		Offset: common.Pagination{Page: page, PerPage: perPage}.Offset(),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid from timestamp", nil)
			return ListFilter{}, false
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid to timestamp", nil)
			return ListFilter{}, false
		}
		filter.To = t
	}
	return filter, true
}
