package favorites

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-rewards/internal/common"
)

// Mirror receives the full favourite list after every change.
type Mirror interface {
	SaveFavourites(ctx context.Context, userID string, productIDs []string) error
}

type Service struct {
	Repo   Repository
	Mirror Mirror
	Logger zerolog.Logger
}

func (s *Service) ready() error {
	if s == nil || s.Repo == nil {
		return errors.New("favorites service not configured")
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ids, err := s.Repo.List(ctx, userID)
	if err != nil {
		return nil, common.Upstream("failed to list favorites", err)
	}
	return ids, nil
}

func (s *Service) Check(ctx context.Context, userID, productID string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, common.Validation("INVALID_PRODUCT_ID", "productId is required")
	}
	exists, err := s.Repo.Exists(ctx, userID, productID)
	if err != nil {
		return false, common.Upstream("failed to check favorite", err)
	}
	return exists, nil
}

// Toggle flips the favourite flag and returns the new state.
func (s *Service) Toggle(ctx context.Context, userID, productID string) (bool, error) {
	exists, err := s.Check(ctx, userID, productID)
	if err != nil {
		return false, err
	}
	productID = strings.TrimSpace(productID)
	if exists {
		err = s.Repo.Remove(ctx, userID, productID)
	} else {
		err = s.Repo.Add(ctx, userID, productID)
	}
	if err != nil {
		return exists, common.Upstream("failed to update favorite", err)
	}
	s.mirror(ctx, userID)
	return !exists, nil
}

func (s *Service) mirror(ctx context.Context, userID string) {
	if s.Mirror == nil {
		return
	}
	ids, err := s.Repo.List(ctx, userID)
	if err == nil {
		err = s.Mirror.SaveFavourites(ctx, userID, ids)
	}
	if err != nil {
		s.Logger.Warn().Err(err).Str("user_id", userID).Msg("favourites_mirror_failed")
	}
}
