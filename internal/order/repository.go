package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-rewards/internal/pricing"
	"github.com/noah-isme/toko-rewards/internal/uow"
)

// RepoName registers the order repository with the unit of work.
const RepoName uow.RepositoryName = "order"

// ErrNotFound indicates the order does not exist for the user.
var ErrNotFound = errors.New("order not found")

// Repository persists orders. There is no update path.
type Repository interface {
	Create(ctx context.Context, o Order) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	GetByID(ctx context.Context, userID string, id uuid.UUID) (Order, error)
}

// PGRepository is the Postgres-backed Repository.
type PGRepository struct {
	DB uow.DBTX
}

// NewPGRepository is a uow.RepositoryFactory.
func NewPGRepository(db uow.DBTX) uow.Repository {
	return &PGRepository{DB: db}
}

// Create inserts the order header and its items in one batch.
func (r *PGRepository) Create(ctx context.Context, o Order) error {
	address, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}
	batch := &pgx.Batch{}
	batch.Queue(`
INSERT INTO orders (id, reference, user_id, status, payment_method, subtotal_mills, delivery_fee_mills,
    game_deduction_mills, loyalty_deduction_mills, total_mills, points_debited, points_earned, address, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.Reference, o.UserID, o.Status, o.PaymentMethod,
		pricing.ToMills(o.Subtotal), pricing.ToMills(o.DeliveryFee),
		pricing.ToMills(o.GameDeduction), pricing.ToMills(o.LoyaltyDeduction), pricing.ToMills(o.Total),
		o.PointsDebited, o.PointsEarned, address, o.CreatedAt)
	for _, it := range o.Items {
		batch.Queue(`
INSERT INTO order_items (id, order_id, product_id, title, image, unit_price_mills, quantity, line_total_mills)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.ID, o.ID, it.ProductID, it.Title, it.Image,
			pricing.ToMills(it.UnitPrice), it.Quantity, pricing.ToMills(it.LineTotal))
	}
	results := r.DB.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
	}
	return nil
}

const selectOrder = `
SELECT id, reference, user_id, status, payment_method, subtotal_mills, delivery_fee_mills,
    game_deduction_mills, loyalty_deduction_mills, total_mills, points_debited, points_earned, address, created_at
FROM orders`

func (r *PGRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, selectOrder+`
WHERE user_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (r *PGRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return total, nil
}

func (r *PGRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, selectOrder+` WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	rows, err := r.DB.Query(ctx, `
SELECT id, product_id, title, image, unit_price_mills, quantity, line_total_mills
FROM order_items WHERE order_id = $1 ORDER BY product_id, id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it           Item
			unit, total  int64
			qty          int32
		)
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Title, &it.Image, &unit, &qty, &total); err != nil {
			return Order{}, fmt.Errorf("scan order item: %w", err)
		}
		it.UnitPrice = pricing.FromMills(unit)
		it.LineTotal = pricing.FromMills(total)
		it.Quantity = int(qty)
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return Order{}, fmt.Errorf("iterate order items: %w", err)
	}
	return o, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                                          Order
		subtotal, fee, game, loyalty, total        int64
		address                                    []byte
	)
	err := row.Scan(&o.ID, &o.Reference, &o.UserID, &o.Status, &o.PaymentMethod,
		&subtotal, &fee, &game, &loyalty, &total, &o.PointsDebited, &o.PointsEarned, &address, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, err
		}
		return Order{}, fmt.Errorf("scan order: %w", err)
	}
	o.Subtotal = pricing.FromMills(subtotal)
	o.DeliveryFee = pricing.FromMills(fee)
	o.GameDeduction = pricing.FromMills(game)
	o.LoyaltyDeduction = pricing.FromMills(loyalty)
	o.Total = pricing.FromMills(total)
	if len(address) > 0 {
		if err := json.Unmarshal(address, &o.Address); err != nil {
			return Order{}, fmt.Errorf("decode address: %w", err)
		}
	}
	return o, nil
}
