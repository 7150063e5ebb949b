package wallet

import (
	"net/http"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/pricing"
)

// Handler exposes the customer's wallet.
type Handler struct {
	Svc *Service
}

// Get returns balances with the redemption ceilings derived from them.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "wallet service not configured", nil)
		return
	}
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Get(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewJSON(view)})
}

// ViewJSON renders a wallet view.
func ViewJSON(v View) map[string]any {
	return map[string]any{
		"gameBalance":       pricing.Format(v.GameBalance),
		"loyaltyPoints":     v.LoyaltyPoints,
		"loyaltyValue":      pricing.Format(pricing.LoyaltyValue(v.LoyaltyPoints)),
		"maxGameRedemption": pricing.Format(pricing.MaxGameRedemption(v.GameBalance)),
		"stale":             v.Stale,
	}
}
