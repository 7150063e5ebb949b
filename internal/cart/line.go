package cart

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-rewards/internal/catalog"
	"github.com/noah-isme/toko-rewards/internal/pricing"
)

// Line is one product in a customer's cart with its price snapshot.
type Line struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// LineTotal is unit price times quantity.
func (l Line) LineTotal() decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is the cart as read at one instant.
type Snapshot struct {
	Lines     []Line
	ItemCount int
}

// NewSnapshot computes the item count for lines.
func NewSnapshot(lines []Line) Snapshot {
	count := 0
	for _, l := range lines {
		if l.Quantity > 0 {
			count += l.Quantity
		}
	}
	return Snapshot{Lines: lines, ItemCount: count}
}

// Empty reports whether no line carries a positive quantity.
func (s Snapshot) Empty() bool {
	return s.ItemCount == 0
}

// PricingItems converts the lines for the pricing engine.
func (s Snapshot) PricingItems() []pricing.Item {
	items := make([]pricing.Item, 0, len(s.Lines))
	for _, l := range s.Lines {
		items = append(items, pricing.Item{Qty: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return items
}

// Subtotal is the pricing subtotal of the snapshot.
func (s Snapshot) Subtotal() decimal.Decimal {
	return pricing.Subtotal(s.PricingItems())
}

// FromRaw maps a loosely shaped cart item payload into a Line. Field naming
// variants are resolved here and nowhere else; missing fields fall back to zero.
func FromRaw(raw map[string]any) Line {
	line := Line{
		ID:        catalog.Text(catalog.Scalar(raw, "id", "cartItemId", "cart_item_id", "_id")),
		ProductID: catalog.Text(catalog.Scalar(raw, "productId", "product_id", "product.id", "product._id")),
		Title:     catalog.Text(catalog.Scalar(raw, "title", "name", "product.title", "product.name")),
		UnitPrice: pricing.Normalize(catalog.Scalar(raw, "unitPrice", "unit_price", "price", "price.amount", "product.price", "product.price.amount")),
		Quantity:  pricing.NormalizeQuantity(catalog.Scalar(raw, "quantity", "qty", "count")),
	}
	line.Image = catalog.ImageFrom(raw)
	if line.Image == "" {
		if product, ok := raw["product"].(map[string]any); ok {
			line.Image = catalog.ImageFrom(product)
		}
	}
	return line
}

// FromRawList maps every element of a raw cart payload, skipping non-objects.
func FromRawList(items []any) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		lines = append(lines, FromRaw(raw))
	}
	return lines
}
