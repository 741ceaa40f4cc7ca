//go:build integration

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/cafe-ordering/internal/domain/auth"
)

func TestRun_Postgres(t *testing.T) {
	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "cafe",
				"POSTGRES_PASSWORD": "cafe",
				"POSTGRES_DB":       "cafe",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	endpoint, err := ctr.PortEndpoint(ctx, "5432/tcp", "")
	require.NoError(t, err)

	cfg := testConfig(t, StorageConfig{
		Driver:      DriverPostgres,
		DatabaseURL: "postgres://cafe:cafe@" + endpoint + "/cafe?sslmode=disable",
	})
	exerciseOrderFlow(t, &client{
		t:       t,
		baseURL: startServer(t, cfg),
		tokens:  auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TTL),
	})
}
