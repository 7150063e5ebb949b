package checkout

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/order"
	"github.com/noah-isme/toko-rewards/internal/pricing"
)

// Error codes specific to checkout.
const (
	CodeCartEmpty         = "CART_EMPTY"
	CodeAddressIncomplete = "ADDRESS_INCOMPLETE"
	CodeQuoteStale        = "QUOTE_STALE"
	CodeInvalidAmount     = "INVALID_AMOUNT"
)

// ErrEmptyCart is returned when there is nothing to price or settle.
var ErrEmptyCart = common.Validation(CodeCartEmpty, "cart is empty")

// ErrInsufficientWallet means a plan would overdraw a wallet. Compose never
// produces such a plan, so seeing it indicates corrupted state.
var ErrInsufficientWallet = errors.New("checkout: plan exceeds wallet balance")

// Selection is the customer's choice of wallets for one checkout.
type Selection struct {
	UseGameWallet bool
	// GameAmount is the requested game wallet redemption; nil takes the maximum.
	GameAmount       *decimal.Decimal
	UseLoyaltyWallet bool
}

// Expected carries the figures the customer confirmed. When present they must
// match the plan recomputed at settlement time.
type Expected struct {
	FinalTotal       decimal.Decimal
	GameDeduction    decimal.Decimal
	LoyaltyDeduction decimal.Decimal
}

// Request is a checkout submission.
type Request struct {
	Address       order.Address
	PaymentMethod string `validate:"required,oneof=online cash-on-delivery"`
	Selection     Selection
	Expected      *Expected
}

func (r Request) normalized() Request {
	out := r
	out.PaymentMethod = strings.ToLower(strings.TrimSpace(r.PaymentMethod))
	a := &out.Address
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Notes = strings.TrimSpace(a.Notes)
	return out
}

var requestValidator = validator.New()

// validate reports missing address fields as ADDRESS_INCOMPLETE and any other
// problem as VALIDATION_FAILED.
func validate(v *validator.Validate, r Request) error {
	err := v.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.Validation("", "invalid checkout request")
	}
	var missing, invalid []string
	for _, fe := range verrs {
		ns := fe.StructNamespace()
		if strings.HasPrefix(ns, "Request.Address.") {
			missing = append(missing, jsonField(fe.Field()))
			continue
		}
		invalid = append(invalid, jsonField(fe.Field()))
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return common.Validation(CodeAddressIncomplete, "shipping address is incomplete").
			WithDetails(map[string]any{"fields": missing})
	}
	sort.Strings(invalid)
	return common.Validation("", "unsupported payment method").
		WithDetails(map[string]any{"fields": invalid})
}

func jsonField(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func (s Selection) check() error {
	if s.GameAmount != nil && s.GameAmount.IsNegative() {
		return invalidAmount("gameAmount")
	}
	return nil
}

func (s Selection) input(subtotal decimal.Decimal, game decimal.Decimal, points int64) pricing.Input {
	in := pricing.Input{
		Subtotal:         subtotal,
		GameBalance:      game,
		LoyaltyPoints:    points,
		UseGameWallet:    s.UseGameWallet,
		UseLoyaltyWallet: s.UseLoyaltyWallet,
	}
	if s.GameAmount != nil {
		amount := pricing.Round(*s.GameAmount)
		in.RequestedGame = &amount
	}
	return in
}

func (e Expected) matches(plan pricing.Plan) bool {
	return pricing.Round(e.FinalTotal).Equal(plan.FinalTotal) &&
		pricing.Round(e.GameDeduction).Equal(plan.GameDeduction) &&
		pricing.Round(e.LoyaltyDeduction).Equal(plan.LoyaltyDeduction)
}

func invalidAmount(field string) *common.AppError {
	return common.NewAppError(CodeInvalidAmount, field+" must be a non-negative number", http.StatusBadRequest, nil).
		WithDetails(map[string]any{"field": field})
}

// parseAmount reads a money value from a JSON number or numeric string.
// Absent or null yields nil. Anything else, negatives included, is rejected.
func parseAmount(field string, raw json.RawMessage) (*decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, invalidAmount(field)
		}
		text = strings.TrimSpace(text)
	}
	amount, err := decimal.NewFromString(text)
	if err != nil || amount.IsNegative() {
		return nil, invalidAmount(field)
	}
	return &amount, nil
}
