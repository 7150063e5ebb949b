package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/pricing"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

// Get returns cart contents, item count and subtotal.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	snap, err := h.Svc.Snapshot(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": View(snap)})
}

// AddItem adds or increments a cart line item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var payload struct {
		ProductID string `json:"productId"`
		Qty       *int   `json:"qty"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	qty := 1
	if payload.Qty != nil {
		qty = *payload.Qty
	}
	if _, err := h.Svc.AddItem(r.Context(), userID, payload.ProductID, qty); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respondCart(w, r, userID, http.StatusCreated)
}

// MergeGuest folds a cart kept by a signed-out client into the user's cart.
func (h *Handler) MergeGuest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var payload struct {
		Items []any `json:"items"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	if len(payload.Items) > maxGuestItems {
		common.WriteError(w, common.Validation("", "too many guest cart items"))
		return
	}
	res, err := h.Svc.Merge(r.Context(), userID, FromRawList(payload.Items))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	snap, err := h.Svc.Snapshot(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out := View(snap)
	out["merged"] = res.Merged
	out["skipped"] = res.Skipped
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

const maxGuestItems = 100

// UpdateItem updates the quantity for a cart line item.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var payload struct {
		Qty int `json:"qty"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), userID, chi.URLParam(r, "itemId"), payload.Qty); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respondCart(w, r, userID, http.StatusOK)
}

// RemoveItem deletes a cart item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), userID, chi.URLParam(r, "itemId")); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respondCart(w, r, userID, http.StatusOK)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Clear(r.Context(), userID); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, userID string, status int) {
	snap, err := h.Svc.Snapshot(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, status, map[string]any{"data": View(snap)})
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart service not configured", nil)
		return "", false
	}
	return common.RequireUserID(w, r)
}

// View renders a snapshot with amounts formatted to three decimals.
func View(snap Snapshot) map[string]any {
	items := make([]map[string]any, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		items = append(items, LineView(l))
	}
	return map[string]any{
		"items":     items,
		"itemCount": snap.ItemCount,
		"subtotal":  pricing.Format(snap.Subtotal()),
	}
}

// LineView renders a single line.
func LineView(l Line) map[string]any {
	return map[string]any{
		"id":        l.ID,
		"productId": l.ProductID,
		"title":     l.Title,
		"image":     l.Image,
		"unitPrice": pricing.Format(l.UnitPrice),
		"quantity":  l.Quantity,
		"lineTotal": pricing.Format(l.LineTotal()),
	}
}
