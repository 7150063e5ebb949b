package order

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-rewards/internal/common"
)

// MaxPerPage caps order history pages.
const MaxPerPage = 100

// Service reads order history. Orders are written only by checkout.
type Service struct {
	Repo Repository
}

// List returns one page of the user's orders, newest first, and the total count.
func (s *Service) List(ctx context.Context, userID string, page, perPage int) ([]Order, int64, error) {
	if s == nil || s.Repo == nil {
		return nil, 0, common.NewAppError(common.CodeInternal, "order repository not configured", http.StatusInternalServerError, nil)
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	total, err := s.Repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, common.Upstream("failed to count orders", err)
	}
	orders, err := s.Repo.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, common.Upstream("failed to list orders", err)
	}
	return orders, total, nil
}

// Get loads one of the user's orders with its items.
func (s *Service) Get(ctx context.Context, userID, orderID string) (Order, error) {
	if s == nil || s.Repo == nil {
		return Order{}, common.NewAppError(common.CodeInternal, "order repository not configured", http.StatusInternalServerError, nil)
	}
	id, err := uuid.Parse(strings.TrimSpace(orderID))
	if err != nil {
		return Order{}, common.Validation("INVALID_ORDER_ID", "invalid order id")
	}
	o, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, common.NotFound("order not found")
		}
		return Order{}, common.Upstream("failed to load order", err)
	}
	return o, nil
}
