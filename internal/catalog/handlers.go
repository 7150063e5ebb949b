package catalog

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/pricing"
)

// ProductSource resolves canonical products.
type ProductSource interface {
	Product(ctx context.Context, id string) (Product, error)
}

// Handler exposes product lookups in canonical form.
type Handler struct {
	Source ProductSource
}

// Get returns one product by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Source == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not configured", nil)
		return
	}
	product, err := h.Source.Product(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":    product.ID,
			"title": product.Title,
			"price": pricing.Format(product.Price),
			"image": product.Image,
		},
	})
}
