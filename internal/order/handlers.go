package order

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/pricing"
)

type Handler struct {
	Svc *Service
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "order service not configured", nil)
		return
	}
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	page := common.ParsePage(r, 20, MaxPerPage)
	orders, total, err := h.Svc.List(r.Context(), userID, page.Number, page.Size)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	response := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		response = append(response, SummaryJSON(o))
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": response,
		"pagination": page.Meta(total),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "order service not configured", nil)
		return
	}
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	o, err := h.Svc.Get(r.Context(), userID, chi.URLParam(r, "orderId"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": DetailJSON(o)})
}

// SummaryJSON renders the list view of an order.
func SummaryJSON(o Order) map[string]any {
	return map[string]any{
		"id":               o.ID.String(),
		"reference":        o.Reference,
		"status":           o.Status,
		"paymentMethod":    o.PaymentMethod,
		"subtotal":         pricing.Format(o.Subtotal),
		"deliveryFee":      pricing.Format(o.DeliveryFee),
		"gameDeduction":    pricing.Format(o.GameDeduction),
		"loyaltyDeduction": pricing.Format(o.LoyaltyDeduction),
		"total":            pricing.Format(o.Total),
		"pointsEarned":     o.PointsEarned,
		"pointsDebited":    o.PointsDebited,
		"createdAt":        o.CreatedAt,
	}
}

// DetailJSON renders an order with its items and address.
func DetailJSON(o Order) map[string]any {
	out := SummaryJSON(o)
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"id":        it.ID.String(),
			"productId": it.ProductID,
			"title":     it.Title,
			"image":     it.Image,
			"unitPrice": pricing.Format(it.UnitPrice),
			"quantity":  it.Quantity,
			"lineTotal": pricing.Format(it.LineTotal),
		})
	}
	out["items"] = items
	out["itemCount"] = o.ItemCount()
	out["address"] = o.Address
	return out
}
