package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cafe-ordering/internal/domain/menu"
	"github.com/xenking/cafe-ordering/internal/storage/memory"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "cafe:menu:v1:list:all", listKey(""))
	assert.Equal(t, "cafe:menu:v1:list:hot", listKey(menu.CategoryHot))
	assert.Equal(t, "cafe:menu:v1:item:42", itemKey("42"))
}

// Redis being down must not break reads or writes.
func TestMenu_RedisUnavailable(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:1",
		DialTimeout:  50 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
		MaxRetries:   -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewMenu(memory.New().Menu(), rdb, time.Minute)

	it := &menu.Item{ID: "latte", Name: "Latte", Category: menu.CategoryHot, Cost: decimal.RequireFromString("4.25")}
	require.NoError(t, c.Create(ctx, it))

	list, err := c.List(ctx, menu.CategoryHot)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := c.GetByID(ctx, "latte")
	require.NoError(t, err)
	assert.Equal(t, "Latte", got.Name)

	_, err = c.GetByID(ctx, "ghost")
	require.ErrorIs(t, err, menu.ErrNotFound)

	require.NoError(t, c.Delete(ctx, "latte"))
	require.ErrorIs(t, c.Delete(ctx, "latte"), menu.ErrNotFound)
}
