package cart_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-rewards/internal/cart"
	"github.com/noah-isme/toko-rewards/internal/pricing"
)

func decodeRaw(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestFromRawNamingVariants(t *testing.T) {
	raw := decodeRaw(t, `[
		{"id":"a","productId":"p1","title":"Mug","price":"12.500 X","quantity":2,"image":"m.png"},
		{"cartItemId":"b","product":{"id":"p2","name":"Tea","price":3.25,"images":["t.png"]},"qty":"3"},
		{"_id":"c","product_id":"p3","unit_price":1,"count":1,"thumbnail":"x.png"},
		"not an object",
		{}
	]`).([]any)

	lines := cart.FromRawList(raw)
	require.Len(t, lines, 4)

	require.Equal(t, cart.Line{ID: "a", ProductID: "p1", Title: "Mug", Image: "m.png", UnitPrice: lines[0].UnitPrice, Quantity: 2}, lines[0])
	require.Equal(t, "12.500", pricing.Format(lines[0].UnitPrice))

	require.Equal(t, "b", lines[1].ID)
	require.Equal(t, "p2", lines[1].ProductID)
	require.Equal(t, "Tea", lines[1].Title)
	require.Equal(t, "t.png", lines[1].Image)
	require.Equal(t, "3.250", pricing.Format(lines[1].UnitPrice))
	require.Equal(t, 3, lines[1].Quantity)

	require.Equal(t, "x.png", lines[2].Image)
	require.Equal(t, 1, lines[2].Quantity)

	require.Empty(t, lines[3].ID)
	require.True(t, lines[3].UnitPrice.IsZero())
	require.Zero(t, lines[3].Quantity)
}

func TestSnapshotTotals(t *testing.T) {
	snap := cart.NewSnapshot([]cart.Line{
		{ProductID: "p1", UnitPrice: pricing.Normalize("12.5"), Quantity: 2},
		{ProductID: "p2", UnitPrice: pricing.Normalize("0.125"), Quantity: 1},
	})
	require.Equal(t, 3, snap.ItemCount)
	require.False(t, snap.Empty())
	require.Equal(t, "25.125", pricing.Format(snap.Subtotal()))

	require.True(t, cart.NewSnapshot(nil).Empty())
}

func TestFromRawNestedPriceObject(t *testing.T) {
	raw := decodeRaw(t, `{"id":"n","product":{"id":"p9","price":{"amount":"8"}},"price":{"currency":"X"},"quantity":1}`).(map[string]any)

	line := cart.FromRaw(raw)
	require.Equal(t, "p9", line.ProductID)
	require.Equal(t, "8.000", pricing.Format(line.UnitPrice))
}
