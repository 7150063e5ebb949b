package favorites

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-rewards/internal/common"
)

type Handler struct {
	Svc *Service
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	ids, err := h.Svc.List(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ids})
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	favorited, err := h.Svc.Toggle(r.Context(), userID, req.ProductID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"favorited": favorited}})
}

// Check reports whether the product is a favourite. Anonymous callers get false.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"favorited": false}})
		return
	}
	exists, err := h.Svc.Check(r.Context(), userID, chi.URLParam(r, "productId"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"favorited": exists}})
}
