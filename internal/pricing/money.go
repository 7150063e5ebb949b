package pricing

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by every settled amount.
const Scale = 3

var (
	// DeliveryFee is the flat fee added to every order.
	DeliveryFee = decimal.RequireFromString("2.000")
	// GameRedemptionCap bounds the game wallet redemption per order, whatever the order size.
	GameRedemptionCap = decimal.RequireFromString("5.000")
	// LoyaltyPointValue is the currency value of a single loyalty point.
	LoyaltyPointValue = decimal.RequireFromString("0.050")
	// PointsEarnedPerCurrencyUnit is the loyalty accrual rate on cash actually paid.
	PointsEarnedPerCurrencyUnit = decimal.NewFromInt(1)
)

var numericToken = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?|\.\d+`)

// Normalize extracts the numeric magnitude of a price that may be a number or a
// formatted string such as "12.500 X". Anything unparseable becomes zero.
func Normalize(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val.Abs()
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return val.Abs()
	case float64:
		return fromFloat(val)
	case float32:
		return fromFloat(float64(val))
	case int:
		return decimal.NewFromInt(int64(val)).Abs()
	case int32:
		return decimal.NewFromInt32(val).Abs()
	case int64:
		return decimal.NewFromInt(val).Abs()
	case uint:
		return decimal.NewFromUint64(uint64(val))
	case uint32:
		return decimal.NewFromUint64(uint64(val))
	case uint64:
		return decimal.NewFromUint64(val)
	case json.Number:
		return parseNumeric(val.String())
	case string:
		return parseNumeric(val)
	default:
		return decimal.Zero
	}
}

// NormalizeQuantity converts a loosely typed quantity to a non-negative int.
func NormalizeQuantity(v any) int {
	n := Normalize(v)
	if n.IsNegative() {
		return 0
	}
	q := n.Floor().IntPart()
	if q > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(q)
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f).Abs()
}

func parseNumeric(s string) decimal.Decimal {
	token := numericToken.FindString(strings.TrimSpace(s))
	if token == "" {
		return decimal.Zero
	}
	token = strings.ReplaceAll(token, ",", "")
	d, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Round rounds to the settlement scale.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Format renders an amount with exactly three decimals, e.g. "12.500".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// ToMills converts an amount to integer thousandths for persistence.
func ToMills(d decimal.Decimal) int64 {
	return d.Shift(Scale).Round(0).IntPart()
}

// FromMills converts persisted thousandths back to an amount.
func FromMills(m int64) decimal.Decimal {
	return decimal.New(m, -Scale)
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
