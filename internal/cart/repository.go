package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-rewards/internal/pricing"
	"github.com/noah-isme/toko-rewards/internal/uow"
)

// RepoName registers the cart repository with the unit of work.
const RepoName uow.RepositoryName = "cart"

// ErrNotFound indicates the requested cart line could not be located.
var ErrNotFound = errors.New("cart item not found")

// Repository persists cart lines per user.
type Repository interface {
	List(ctx context.Context, userID string) ([]Line, error)
	Upsert(ctx context.Context, userID string, line Line) (Line, error)
	UpdateQuantity(ctx context.Context, userID, itemID string, qty int) error
	Remove(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
}

// PGRepository is the Postgres-backed Repository.
type PGRepository struct {
	DB uow.DBTX
}

// NewPGRepository is a uow.RepositoryFactory.
func NewPGRepository(db uow.DBTX) uow.Repository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) List(ctx context.Context, userID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `
SELECT id, product_id, title, image, unit_price_mills, quantity
FROM cart_items
WHERE user_id = $1
ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var (
			id    pgtype.UUID
			line  Line
			mills int64
			qty   int32
		)
		if err := rows.Scan(&id, &line.ProductID, &line.Title, &line.Image, &mills, &qty); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		line.ID = uuidString(id)
		line.UnitPrice = pricing.FromMills(mills)
		line.Quantity = int(qty)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return lines, nil
}

// Upsert inserts the line or increments the quantity of the existing line for
// the same product, refreshing the title, image and price snapshot.
func (r *PGRepository) Upsert(ctx context.Context, userID string, line Line) (Line, error) {
	var (
		id  pgtype.UUID
		qty int32
	)
	err := r.DB.QueryRow(ctx, `
INSERT INTO cart_items (id, user_id, product_id, title, image, unit_price_mills, quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, product_id) DO UPDATE
SET quantity = cart_items.quantity + EXCLUDED.quantity,
    title = EXCLUDED.title,
    image = EXCLUDED.image,
    unit_price_mills = EXCLUDED.unit_price_mills,
    updated_at = now()
RETURNING id, quantity`,
		uuid.New(), userID, line.ProductID, line.Title, line.Image, pricing.ToMills(line.UnitPrice), line.Quantity,
	).Scan(&id, &qty)
	if err != nil {
		return Line{}, fmt.Errorf("upsert cart item: %w", err)
	}
	line.ID = uuidString(id)
	line.Quantity = int(qty)
	return line, nil
}

func (r *PGRepository) UpdateQuantity(ctx context.Context, userID, itemID string, qty int) error {
	id, err := toUUID(itemID)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.DB.Exec(ctx, `
UPDATE cart_items SET quantity = $3, updated_at = now()
WHERE id = $1 AND user_id = $2`, id, userID, qty)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) Remove(ctx context.Context, userID, itemID string) error {
	id, err := toUUID(itemID)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func toUUID(value string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
