// Package cache provides a Redis read-through cache for the menu.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/cafe-ordering/internal/domain/menu"
)

const keyPrefix = "cafe:menu:v1:"

var _ menu.Repository = (*Menu)(nil)

// Menu decorates a menu.Repository. Reads are served from Redis when
// possible; writes go to the repository and invalidate the cache. Redis
// failures are logged and never fail a request.
type Menu struct {
	next menu.Repository
	rdb  redis.UniversalClient
	ttl  time.Duration
}

// NewMenu wraps next with a cache that keeps entries for ttl.
func NewMenu(next menu.Repository, rdb redis.UniversalClient, ttl time.Duration) *Menu {
	return &Menu{next: next, rdb: rdb, ttl: ttl}
}

func listKey(category menu.Category) string {
	if category == "" {
		return keyPrefix + "list:all"
	}
	return keyPrefix + "list:" + string(category)
}

func itemKey(id string) string {
	return keyPrefix + "item:" + id
}

func (m *Menu) List(ctx context.Context, category menu.Category) ([]menu.Item, error) {
	key := listKey(category)
	var items []menu.Item
	if m.get(ctx, key, &items) {
		return items, nil
	}

	items, err := m.next.List(ctx, category)
	if err != nil {
		return nil, err
	}
	m.set(ctx, key, items)
	return items, nil
}

func (m *Menu) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	key := itemKey(id)
	var it menu.Item
	if m.get(ctx, key, &it) {
		return &it, nil
	}

	got, err := m.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.set(ctx, key, got)
	return got, nil
}

// GetByIDs always reads through: checkout must price from the store.
func (m *Menu) GetByIDs(ctx context.Context, ids []string) ([]menu.Item, error) {
	return m.next.GetByIDs(ctx, ids)
}

func (m *Menu) Create(ctx context.Context, it *menu.Item) error {
	if err := m.next.Create(ctx, it); err != nil {
		return err
	}
	m.invalidate(ctx, it.ID)
	return nil
}

func (m *Menu) Update(ctx context.Context, it *menu.Item) error {
	if err := m.next.Update(ctx, it); err != nil {
		return err
	}
	m.invalidate(ctx, it.ID)
	return nil
}

func (m *Menu) Delete(ctx context.Context, id string) error {
	if err := m.next.Delete(ctx, id); err != nil {
		return err
	}
	m.invalidate(ctx, id)
	return nil
}

func (m *Menu) get(ctx context.Context, key string, v any) bool {
	data, err := m.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zctx.From(ctx).Warn("Menu cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		zctx.From(ctx).Warn("Menu cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (m *Menu) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zctx.From(ctx).Warn("Menu cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := m.rdb.Set(ctx, key, data, m.ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Menu cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidate drops the item entry and every list, since a write may move an
// item between categories.
func (m *Menu) invalidate(ctx context.Context, id string) {
	keys := []string{itemKey(id), listKey("")}
	for _, c := range menu.Categories {
		keys = append(keys, listKey(c))
	}
	if err := m.rdb.Del(ctx, keys...).Err(); err != nil {
		zctx.From(ctx).Warn("Menu cache invalidation failed", zap.String("id", id), zap.Error(err))
	}
}
