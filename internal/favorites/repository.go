package favorites

import (
	"context"
	"fmt"

	"github.com/noah-isme/toko-rewards/internal/uow"
)

// RepoName registers the favourites repository with the unit of work.
const RepoName uow.RepositoryName = "favorites"

// Repository stores favourite product ids per user.
type Repository interface {
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	Exists(ctx context.Context, userID, productID string) (bool, error)
	List(ctx context.Context, userID string) ([]string, error)
}

type PGRepository struct {
	DB uow.DBTX
}

// NewPGRepository is a uow.RepositoryFactory.
func NewPGRepository(db uow.DBTX) uow.Repository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Add(ctx context.Context, userID, productID string) error {
	_, err := r.DB.Exec(ctx, `
INSERT INTO favorites (user_id, product_id) VALUES ($1, $2)
ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID)
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

func (r *PGRepository) Remove(ctx context.Context, userID, productID string) error {
	if _, err := r.DB.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`, userID, productID); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

func (r *PGRepository) Exists(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND product_id = $2)`, userID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) List(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT product_id FROM favorites WHERE user_id = $1 ORDER BY created_at DESC, product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
