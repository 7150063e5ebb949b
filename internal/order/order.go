package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-rewards/internal/cart"
	"github.com/noah-isme/toko-rewards/internal/localstate"
	"github.com/noah-isme/toko-rewards/internal/pricing"
)

// StatusProcessing is the status every order is created with.
const StatusProcessing = "processing"

// Payment methods accepted at checkout.
const (
	PaymentOnline         = "online"
	PaymentCashOnDelivery = "cash-on-delivery"
)

// ReferencePrefix starts every display reference.
const ReferencePrefix = "ORD-"

// Address is the shipping address captured at checkout.
type Address struct {
	FullName   string `json:"fullName" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Notes      string `json:"notes,omitempty"`
}

// Item is a cart line frozen at purchase time.
type Item struct {
	ID        uuid.UUID       `json:"id"`
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Order is immutable once created.
type Order struct {
	ID               uuid.UUID
	Reference        string
	UserID           string
	Status           string
	PaymentMethod    string
	Subtotal         decimal.Decimal
	DeliveryFee      decimal.Decimal
	GameDeduction    decimal.Decimal
	LoyaltyDeduction decimal.Decimal
	Total            decimal.Decimal
	PointsDebited    int64
	PointsEarned     int64
	Address          Address
	Items            []Item
	CreatedAt        time.Time
}

// ItemCount sums item quantities.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Summary is the mirrored view of the order.
func (o Order) Summary() localstate.OrderSummary {
	return localstate.OrderSummary{
		ID:        o.ID.String(),
		Reference: o.Reference,
		Date:      o.CreatedAt,
		Status:    o.Status,
		Total:     pricing.Format(o.Total),
		ItemCount: o.ItemCount(),
	}
}

// ItemsFromCart copies cart lines so later cart or catalog changes cannot
// alter the order.
func ItemsFromCart(lines []cart.Line) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		items = append(items, Item{
			ID:        uuid.New(),
			ProductID: l.ProductID,
			Title:     l.Title,
			Image:     l.Image,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal(),
		})
	}
	return items
}

// NewReference returns a display reference such as ORD-042917. It is not
// unique; the order's UUID is the key.
func NewReference() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate order reference: %w", err)
	}
	return fmt.Sprintf("%s%06d", ReferencePrefix, n.Int64()), nil
}
