package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"ffarm/internal/db"
	"ffarm/internal/farm"
	"ffarm/internal/store/storetest"
)

// Set FFARM_TEST_DATABASE_URL to a disposable database to run these tests.
// Every subtest truncates all farm tables.
func testPool(t *testing.T) string {
	t.Helper()
	url := os.Getenv("FFARM_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FFARM_TEST_DATABASE_URL not set")
	}
	return url
}

func TestConformance(t *testing.T) {
	url := testPool(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, url, nil))
	// A second run finds nothing to apply.
	require.NoError(t, Migrate(ctx, url, nil))

	pool, err := db.Connect(ctx, url, db.DefaultPoolOptions())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	storetest.Run(t, func(t *testing.T) farm.Store {
		_, err := pool.Exec(ctx, `
			TRUNCATE user_auto_planting, user_crops, user_upgrades, plants_listing,
			         upgrade_listings, cashflow_ledger, users
			RESTART IDENTITY CASCADE
		`)
		require.NoError(t, err)
		return New(pool, nil)
	})
}
