//go:build integration && postgres

package repository

import (
	"context"
	"math/rand"
	"os"
	"sync"
	"testing"

	"github.com/Evgen-Mutagen/moneytransfer/internal/model"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs concurrent transfers through the real SERIALIZABLE unit and checks
// that no update is lost and no balance goes negative.
func TestIntegrationConcurrentTransfersConserveMoney(t *testing.T) {
	_ = godotenv.Load("../../.env")
	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI not set; skipping Postgres integration")
	}

	db, err := NewDatabase(DatabaseConfig{DSN: dsn, MigrationsPath: "../../migrations"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	users := NewUserRepository(db)
	accounts := NewAccountRepository(db)

	suffix := uuid.NewString()[:8]
	names := make([]string, 4)
	ids := make([]int64, len(names))
	for i := range names {
		names[i] = "it-" + suffix + "-" + string(rune('a'+i))
		account, err := users.CreateWithAccount(ctx, &model.User{Username: names[i], PasswordHash: "x"}, model.InitialBalance)
		require.NoError(t, err)
		ids[i] = account.ID
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				from := rnd.Intn(len(ids))
				to := (from + 1 + rnd.Intn(len(ids)-1)) % len(ids)
				// Insufficient funds and exhausted retries are expected outcomes.
				_, _ = accounts.Transfer(ctx, ids[from], ids[to], int64(rnd.Intn(20000)+1))
			}
		}(int64(w))
	}
	wg.Wait()

	var total int64
	for _, name := range names {
		account, err := accounts.GetByUsername(ctx, name)
		require.NoError(t, err)
		require.NotNil(t, account)
		assert.GreaterOrEqual(t, account.Balance, int64(0), name)
		total += account.Balance
	}
	assert.Equal(t, model.InitialBalance*int64(len(names)), total)
}
