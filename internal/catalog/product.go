package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-rewards/internal/pricing"
)

// Product is the canonical product shape used by the rest of the service.
type Product struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

// ProductFromRaw maps a loosely shaped upstream payload into a Product. Missing
// or malformed fields degrade to zero values.
func ProductFromRaw(raw map[string]any) Product {
	return Product{
		ID:    Text(Scalar(raw, "id", "_id", "productId", "product_id")),
		Title: Text(Scalar(raw, "title", "name", "productName")),
		Price: pricing.Normalize(Scalar(raw, "price", "unitPrice", "unit_price", "price.amount", "salePrice")),
		Image: ImageFrom(raw),
	}
}

// ImageFrom picks the first usable image reference from the known field variants.
func ImageFrom(raw map[string]any) string {
	if v := Text(Scalar(raw, "image", "imageUrl", "image_url", "thumbnail", "img")); v != "" {
		return v
	}
	images, ok := Lookup(raw, "images").([]any)
	if !ok || len(images) == 0 {
		return ""
	}
	switch first := images[0].(type) {
	case string:
		return strings.TrimSpace(first)
	case map[string]any:
		return Text(Scalar(first, "url", "src"))
	}
	return ""
}

// Lookup returns the first present value among keys. Dotted keys descend into
// nested objects.
func Lookup(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := lookupPath(raw, key); ok && v != nil {
			return v
		}
	}
	return nil
}

// Scalar is Lookup restricted to leaf values: a key holding an object or a
// list is passed over so a later key such as "price.amount" can match.
func Scalar(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		v, ok := lookupPath(raw, key)
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		return v
	}
	return nil
}

func lookupPath(raw map[string]any, path string) (any, bool) {
	cur := raw
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Text renders scalar identifiers and labels as trimmed strings.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	case float64:
		return decimal.NewFromFloat(val).String()
	case int, int32, int64:
		return fmt.Sprint(val)
	default:
		return ""
	}
}
