//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/cafe-ordering/internal/domain/menu"
	"github.com/xenking/cafe-ordering/internal/storage/memory"
)

func TestMenu_Redis(t *testing.T) {
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	endpoint, err := ctr.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := memory.New().Menu()
	c := NewMenu(repo, rdb, time.Minute)

	it := &menu.Item{ID: "latte", Name: "Latte", Category: menu.CategoryHot, Cost: decimal.RequireFromString("4.25")}
	require.NoError(t, c.Create(ctx, it))

	_, err = c.GetByID(ctx, "latte")
	require.NoError(t, err)
	_, err = c.List(ctx, "")
	require.NoError(t, err)

	// Bypass the decorator: cached reads keep the old value.
	stale := *it
	stale.Name = "Flat White"
	require.NoError(t, repo.Update(ctx, &stale))

	got, err := c.GetByID(ctx, "latte")
	require.NoError(t, err)
	assert.Equal(t, "Latte", got.Name)
	assert.True(t, got.Cost.Equal(decimal.RequireFromString("4.25")))

	// A write through the decorator invalidates.
	stale.Name = "Mocha"
	require.NoError(t, c.Update(ctx, &stale))

	got, err = c.GetByID(ctx, "latte")
	require.NoError(t, err)
	assert.Equal(t, "Mocha", got.Name)

	list, err := c.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Mocha", list[0].Name)
}
