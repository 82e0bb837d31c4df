package e2e_test

import (
	"context"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	sharedPostgresOnce    sync.Once
	sharedPostgresDSN     string
	sharedPostgresErr     error
	sharedPostgresCleanup func()
)

// getSharedPostgresDatabase returns the DSN of a PostgreSQL container shared
// by all E2E tests. The container is terminated in TestMain.
func getSharedPostgresDatabase(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}

	sharedPostgresOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			sharedPostgresErr = err
			return
		}

		sharedPostgresCleanup = func() {
			_ = testcontainers.TerminateContainer(pgContainer)
		}

		sharedPostgresDSN, sharedPostgresErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
	})

	if sharedPostgresErr != nil {
		t.Fatalf("failed to start postgres container: %v", sharedPostgresErr)
	}

	return sharedPostgresDSN
}
