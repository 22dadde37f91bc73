package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lokmanguedri/motivex/internal/redisx"
)

const (
	MaxLines = 50
	MaxQty   = 99
)

var (
	ErrInvalidItem = errors.New("invalid cart item")
	ErrCartFull    = errors.New("cart is full")
)

type Line struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"min=1,max=99"`
}

// Store keeps one cart per user as a redis hash of product id to quantity.
// Every write refreshes the 30 day TTL.
type Store struct {
	Redis redis.Cmdable
}

func key(userID string) string { return fmt.Sprintf(redisx.KeyCart, userID) }

func (s *Store) Get(ctx context.Context, userID string) ([]Line, error) {
	m, err := s.Redis.HGetAll(ctx, key(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(m))
	for pid, v := range m {
		qty, err := strconv.Atoi(v)
		if err != nil || qty <= 0 {
			continue
		}
		out = append(out, Line{ProductID: pid, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// SetItem sets the quantity of one product; qty 0 removes the line.
func (s *Store) SetItem(ctx context.Context, userID, productID string, qty int) ([]Line, error) {
	if _, err := uuid.Parse(productID); err != nil || qty < 0 || qty > MaxQty {
		return nil, ErrInvalidItem
	}
	if qty == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	k := key(userID)
	exists, err := s.Redis.HExists(ctx, k, productID).Result()
	if err != nil {
		return nil, err
	}
	if !exists {
		n, err := s.Redis.HLen(ctx, k).Result()
		if err != nil {
			return nil, err
		}
		if n >= MaxLines {
			return nil, ErrCartFull
		}
	}
	_, err = s.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, productID, qty)
		p.Expire(ctx, k, redisx.TTLCart)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *Store) RemoveItem(ctx context.Context, userID, productID string) ([]Line, error) {
	if err := s.Redis.HDel(ctx, key(userID), productID).Err(); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, key(userID)).Err()
}
