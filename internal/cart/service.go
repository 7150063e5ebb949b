package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/toko-rewards/internal/catalog"
	"github.com/noah-isme/toko-rewards/internal/common"
)

// Service encapsulates cart domain operations.
type Service struct {
	Repo    Repository
	Catalog catalog.ProductSource
}

func (s *Service) ready() error {
	if s == nil || s.Repo == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// Snapshot reads the user's cart.
func (s *Service) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	if err := s.ready(); err != nil {
		return Snapshot{}, err
	}
	lines, err := s.Repo.List(ctx, userID)
	if err != nil {
		return Snapshot{}, common.Upstream("unable to load cart", err)
	}
	return NewSnapshot(lines), nil
}

// AddItem adds qty of a product, snapshotting its catalog title, image and price.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) (Line, error) {
	if err := s.ready(); err != nil {
		return Line{}, err
	}
	if qty <= 0 {
		return Line{}, invalidQuantity()
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Line{}, common.Validation("", "productId is required")
	}
	if s.Catalog == nil {
		return Line{}, errors.New("cart catalog not configured")
	}
	product, err := s.Catalog.Product(ctx, productID)
	if err != nil {
		return Line{}, err
	}
	line, err := s.Repo.Upsert(ctx, userID, Line{
		ProductID: productID,
		Title:     product.Title,
		Image:     product.Image,
		UnitPrice: product.Price,
		Quantity:  qty,
	})
	if err != nil {
		return Line{}, common.Upstream("unable to add cart item", err)
	}
	return line, nil
}

// MergeResult reports what a guest cart merge did.
type MergeResult struct {
	Merged  int      `json:"merged"`
	Skipped []string `json:"skipped"`
}

// Merge folds a guest cart into the user's cart. Only product id and quantity
// are taken from the guest lines; title, image and price come from the catalog.
// Lines without a product, with no quantity, or naming an unknown product are
// skipped. Any other failure stops the merge.
func (s *Service) Merge(ctx context.Context, userID string, guest []Line) (MergeResult, error) {
	if err := s.ready(); err != nil {
		return MergeResult{}, err
	}
	res := MergeResult{Skipped: []string{}}
	for _, l := range guest {
		if strings.TrimSpace(l.ProductID) == "" || l.Quantity <= 0 {
			res.Skipped = append(res.Skipped, l.ProductID)
			continue
		}
		if _, err := s.AddItem(ctx, userID, l.ProductID, l.Quantity); err != nil {
			if common.HasCode(err, common.CodeNotFound) {
				res.Skipped = append(res.Skipped, l.ProductID)
				continue
			}
			return res, err
		}
		res.Merged++
	}
	return res, nil
}

// UpdateQty sets the quantity of an existing line.
func (s *Service) UpdateQty(ctx context.Context, userID, itemID string, qty int) error {
	if err := s.ready(); err != nil {
		return err
	}
	if qty <= 0 {
		return invalidQuantity()
	}
	return mapRepoErr(s.Repo.UpdateQuantity(ctx, userID, itemID, qty), "unable to update cart item")
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return mapRepoErr(s.Repo.Remove(ctx, userID, itemID), "unable to remove cart item")
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return mapRepoErr(s.Repo.Clear(ctx, userID), "unable to clear cart")
}

func invalidQuantity() *common.AppError {
	return common.Validation("INVALID_QUANTITY", "quantity must be positive")
}

func mapRepoErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return common.NotFound("cart item not found")
	default:
		return common.Upstream(msg, fmt.Errorf("cart: %w", err))
	}
}
