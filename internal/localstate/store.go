package localstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed per-user keys of the mirror.
const (
	KeyOrders        = "orders"
	KeyFavourites    = "favourites"
	KeyGameWallet    = "gameWallet"
	KeyLoyaltyPoints = "loyaltyPoints"
	keyWalletStamp   = "walletUpdatedAt"
)

const defaultMaxOrders = 50

// Wallet is the mirrored wallet. Amounts travel as fixed three-decimal strings.
type Wallet struct {
	GameBalance   string
	LoyaltyPoints int64
	UpdatedAt     time.Time
}

// OrderSummary is the mirrored view of a placed order.
type OrderSummary struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
	Total     string    `json:"total"`
	ItemCount int       `json:"itemCount"`
}

// Store mirrors orders, favourites and wallet balances in Redis. It is
// advisory: Postgres stays authoritative and callers log rather than fail on
// mirror errors.
type Store struct {
	R         *redis.Client
	MaxOrders int
}

func key(userID, name string) string {
	return "localstate:" + userID + ":" + name
}

func (s *Store) ready() error {
	if s == nil || s.R == nil {
		return errors.New("localstate: redis client not configured")
	}
	return nil
}

func (s *Store) maxOrders() int64 {
	if s.MaxOrders <= 0 {
		return defaultMaxOrders
	}
	return int64(s.MaxOrders)
}

// SaveWallet overwrites the mirrored balances.
func (s *Store) SaveWallet(ctx context.Context, userID string, w Wallet) error {
	if err := s.ready(); err != nil {
		return err
	}
	stamp := w.UpdatedAt
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	_, err := s.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key(userID, KeyGameWallet), w.GameBalance, 0)
		p.Set(ctx, key(userID, KeyLoyaltyPoints), w.LoyaltyPoints, 0)
		p.Set(ctx, key(userID, keyWalletStamp), stamp.Format(time.RFC3339Nano), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("localstate: save wallet: %w", err)
	}
	return nil
}

// LoadWallet reads the mirrored balances and reports whether any were present.
func (s *Store) LoadWallet(ctx context.Context, userID string) (Wallet, bool, error) {
	if err := s.ready(); err != nil {
		return Wallet{}, false, err
	}
	vals, err := s.R.MGet(ctx,
		key(userID, KeyGameWallet),
		key(userID, KeyLoyaltyPoints),
		key(userID, keyWalletStamp),
	).Result()
	if err != nil {
		return Wallet{}, false, fmt.Errorf("localstate: load wallet: %w", err)
	}
	game, _ := vals[0].(string)
	if game == "" {
		return Wallet{}, false, nil
	}
	w := Wallet{GameBalance: game}
	if pts, ok := vals[1].(string); ok {
		_, _ = fmt.Sscan(pts, &w.LoyaltyPoints)
	}
	if stamp, ok := vals[2].(string); ok {
		w.UpdatedAt, _ = time.Parse(time.RFC3339Nano, stamp)
	}
	return w, true, nil
}

// AppendOrder pushes an order summary, newest first, trimming to MaxOrders.
func (s *Store) AppendOrder(ctx context.Context, userID string, o OrderSummary) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("localstate: encode order: %w", err)
	}
	k := key(userID, KeyOrders)
	_, err = s.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, k, data)
		p.LTrim(ctx, k, 0, s.maxOrders()-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("localstate: append order: %w", err)
	}
	return nil
}

// Orders returns mirrored summaries, newest first. Undecodable entries are skipped.
func (s *Store) Orders(ctx context.Context, userID string) ([]OrderSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	raw, err := s.R.LRange(ctx, key(userID, KeyOrders), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("localstate: list orders: %w", err)
	}
	out := make([]OrderSummary, 0, len(raw))
	for _, item := range raw {
		var o OrderSummary
		if err := json.Unmarshal([]byte(item), &o); err != nil {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// SaveFavourites replaces the mirrored favourite product ids.
func (s *Store) SaveFavourites(ctx context.Context, userID string, productIDs []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if productIDs == nil {
		productIDs = []string{}
	}
	data, err := json.Marshal(productIDs)
	if err != nil {
		return fmt.Errorf("localstate: encode favourites: %w", err)
	}
	if err := s.R.Set(ctx, key(userID, KeyFavourites), data, 0).Err(); err != nil {
		return fmt.Errorf("localstate: save favourites: %w", err)
	}
	return nil
}

// Favourites reads the mirrored favourite product ids.
func (s *Store) Favourites(ctx context.Context, userID string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	data, err := s.R.Get(ctx, key(userID, KeyFavourites)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("localstate: load favourites: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return []string{}, nil
	}
	return ids, nil
}
