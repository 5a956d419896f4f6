//go:build integration

package postgres_test

import (
	"context"
	"math/big"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/getclave/activity-indexer/internal/store/postgres"
)

// testDB returns a migrated *postgres.DB. It checks the TEST_DB_URL
// environment variable first (an external database assumed to be
// migrated); if unset, it falls back to a testcontainers ephemeral
// PostgreSQL.
func testDB(t *testing.T) *postgres.DB {
	t.Helper()
	if url := os.Getenv("TEST_DB_URL"); url != "" {
		db, err := postgres.New(postgres.Config{
			URL:             url,
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Minute,
		})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return db
	}
	return setupTestContainer(t)
}

// randomAddress returns a unique well-formed 0x address so runs against a
// shared TEST_DB_URL database never collide.
func randomAddress() string {
	hex := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return "0x" + hex[:40]
}

func TestIdleBalanceRepo_UpsertAndGet(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewIdleBalanceRepo(db)
	ctx := context.Background()

	addr, token := randomAddress(), randomAddress()
	b := &model.IdleBalance{
		ID:      model.IdleBalanceID(addr, token),
		Address: addr,
		Token:   token,
		Balance: big.NewInt(100),
	}
	require.NoError(t, repo.Set(ctx, b))

	// Second write on the same id updates in place, including a negative
	// balance (withdraw seen before its deposit).
	b.Balance = big.NewInt(-25)
	require.NoError(t, repo.Set(ctx, b))

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, addr, got.Address)
	assert.Equal(t, token, got.Token)
	assert.Zero(t, got.Balance.Cmp(big.NewInt(-25)))
}

func TestIdleBalanceRepo_GetAbsent(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewIdleBalanceRepo(db)

	got, err := repo.Get(context.Background(), model.IdleBalanceID(randomAddress(), randomAddress()))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdleBalanceRepo_HistoricalBucketCollapse(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewIdleBalanceRepo(db)
	ctx := context.Background()

	addr, token := randomAddress(), randomAddress()
	b := &model.IdleBalance{
		ID:      model.IdleBalanceID(addr, token),
		Address: addr,
		Token:   token,
		Balance: big.NewInt(100),
	}

	bucket := model.BucketTimestamp(time.Now().Unix(), model.AccountBucketSeconds)

	require.NoError(t, repo.SetHistorical(ctx, b, bucket))
	b.Balance = big.NewInt(40)
	require.NoError(t, repo.SetHistorical(ctx, b, bucket))

	b.Balance = big.NewInt(75)
	require.NoError(t, repo.SetHistorical(ctx, b, bucket+model.AccountBucketSeconds))

	rows, err := db.QueryContext(ctx, `
		SELECT bucket_ts, balance::text
		FROM historical_idle_balances
		WHERE address = $1
		ORDER BY bucket_ts
	`, addr)
	require.NoError(t, err)
	defer rows.Close()

	type snapshot struct {
		bucketTS int64
		balance  string
	}
	var snapshots []snapshot
	for rows.Next() {
		var s snapshot
		require.NoError(t, rows.Scan(&s.bucketTS, &s.balance))
		snapshots = append(snapshots, s)
	}
	require.NoError(t, rows.Err())

	// Two writes in the first bucket collapse onto one row holding the
	// last value; the next bucket opens a distinct row.
	require.Len(t, snapshots, 2)
	assert.Equal(t, snapshot{bucket, "40"}, snapshots[0])
	assert.Equal(t, snapshot{bucket + model.AccountBucketSeconds, "75"}, snapshots[1])
}

func TestPoolRegistryRepo_SetFirstWriteWins(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewPoolRegistryRepo(db)
	ctx := context.Background()

	pool := randomAddress()
	require.NoError(t, repo.Set(ctx, &model.PoolRegistryEntry{
		ID: pool, Pool: pool, Protocol: model.ProtocolLending,
	}))

	// A redundant registration under another protocol must not flip the
	// pool's classification.
	require.NoError(t, repo.Set(ctx, &model.PoolRegistryEntry{
		ID: pool, Pool: pool, Protocol: model.ProtocolAMM,
	}))

	protocols, err := repo.Protocols(ctx, []string{pool, randomAddress()})
	require.NoError(t, err)
	require.Len(t, protocols, 1)
	assert.Equal(t, model.ProtocolLending, protocols[pool])
}
