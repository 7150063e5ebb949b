package checkout

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/order"
	"github.com/noah-isme/toko-rewards/internal/pricing"
	"github.com/noah-isme/toko-rewards/internal/wallet"
)

type Handler struct {
	Svc *Service
}

type selectionPayload struct {
	UseGameWallet    bool            `json:"useGameWallet"`
	GameAmount       json.RawMessage `json:"gameAmount"`
	UseLoyaltyWallet bool            `json:"useLoyaltyWallet"`
}

func (p selectionPayload) selection() (Selection, error) {
	amount, err := parseAmount("gameAmount", p.GameAmount)
	if err != nil {
		return Selection{}, err
	}
	return Selection{UseGameWallet: p.UseGameWallet, GameAmount: amount, UseLoyaltyWallet: p.UseLoyaltyWallet}, nil
}

type expectedPayload struct {
	FinalTotal       json.RawMessage `json:"finalTotal"`
	GameDeduction    json.RawMessage `json:"gameDeduction"`
	LoyaltyDeduction json.RawMessage `json:"loyaltyDeduction"`
}

func (p expectedPayload) expected() (*Expected, error) {
	var out Expected
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *decimal.Decimal
	}{
		{"expected.finalTotal", p.FinalTotal, &out.FinalTotal},
		{"expected.gameDeduction", p.GameDeduction, &out.GameDeduction},
		{"expected.loyaltyDeduction", p.LoyaltyDeduction, &out.LoyaltyDeduction},
	}
	for _, f := range fields {
		v, err := parseAmount(f.name, f.raw)
		if err != nil {
			return nil, err
		}
		if v != nil {
			*f.dst = *v
		}
	}
	return &out, nil
}

type submitPayload struct {
	selectionPayload
	Address       order.Address    `json:"address"`
	PaymentMethod string           `json:"paymentMethod"`
	Expected      *expectedPayload `json:"expected"`
}

// Quote prices the cart for the chosen wallets without settling.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout service not configured", nil)
		return
	}
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	var payload selectionPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	sel, err := payload.selection()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Svc.Quote(r.Context(), userID, sel)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out := PlanJSON(q.Plan)
	out["itemCount"] = q.ItemCount
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Checkout settles the cart into an order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout service not configured", nil)
		return
	}
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	var payload submitPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	sel, err := payload.selection()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	req := Request{
		Address:       payload.Address,
		PaymentMethod: payload.PaymentMethod,
		Selection:     sel,
	}
	if payload.Expected != nil {
		if req.Expected, err = payload.Expected.expected(); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	receipt, err := h.Svc.Submit(r.Context(), userID, req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": ReceiptJSON(receipt)})
}

// PlanJSON renders a plan with fixed three-decimal amounts.
func PlanJSON(p pricing.Plan) map[string]any {
	return map[string]any{
		"subtotal":          pricing.Format(p.Subtotal),
		"deliveryFee":       pricing.Format(p.DeliveryFee),
		"maxGameRedemption": pricing.Format(p.MaxGame),
		"maxLoyalty":        pricing.Format(p.MaxLoyalty),
		"gameDeduction":     pricing.Format(p.GameDeduction),
		"loyaltyDeduction":  pricing.Format(p.LoyaltyDeduction),
		"finalTotal":        pricing.Format(p.FinalTotal),
		"pointsToDebit":     p.PointsToDebit,
		"pointsEarned":      p.PointsEarned,
	}
}

// ReceiptJSON renders a settled order.
func ReceiptJSON(rc Receipt) map[string]any {
	return map[string]any{
		"orderId":          rc.OrderID.String(),
		"reference":        rc.Reference,
		"status":           rc.Status,
		"subtotal":         pricing.Format(rc.Plan.Subtotal),
		"deliveryFee":      pricing.Format(rc.Plan.DeliveryFee),
		"finalTotal":       pricing.Format(rc.Plan.FinalTotal),
		"gameDeduction":    pricing.Format(rc.Plan.GameDeduction),
		"loyaltyDeduction": pricing.Format(rc.Plan.LoyaltyDeduction),
		"pointsDebited":    rc.Plan.PointsToDebit,
		"pointsEarned":     rc.Plan.PointsEarned,
		"createdAt":        rc.CreatedAt,
		"wallet":           wallet.ViewJSON(wallet.View{State: rc.Wallet}),
	}
}
