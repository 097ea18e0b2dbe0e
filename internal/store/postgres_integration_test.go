//go:build integration

package store

// Run with: go test -tags=integration ./internal/store
// Requires: TEST_DATABASE_URL pointing at a database the test may create
// schemas in. Each run works in its own schema and drops it afterwards.

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/DataClean/internal/core"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres integration tests")
	}

	ctx := context.Background()
	admin, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	schema := fmt.Sprintf("dataclean_test_%d", time.Now().UnixNano())
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		if _, err := admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func intPtr(n int) *int { return &n }

func TestPostgres_Integration(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	p := NewPostgres(pool)

	t.Run("migrate is repeatable", func(t *testing.T) {
		require.NoError(t, Migrate(ctx, pool))
	})

	user, err := p.CreateUser(ctx, "ann@example.com", "hash")
	require.NoError(t, err)

	t.Run("users", func(t *testing.T) {
		_, err := p.CreateUser(ctx, "ann@example.com", "other")
		assert.ErrorIs(t, err, core.ErrEmailTaken)

		got, err := p.GetUserByEmail(ctx, "ann@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		require.NoError(t, p.UpdatePassword(ctx, user.ID, "new"))
		got, err = p.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.HashedPassword)

		_, err = p.GetUser(ctx, user.ID+1000)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.ErrorIs(t, p.UpdatePassword(ctx, user.ID+1000, "x"), core.ErrNotFound)
	})

	first, err := p.CreateUpload(ctx, core.FileUpload{UserID: user.ID, OriginalFilename: "a.csv", FilePath: "uploads/a.csv"})
	require.NoError(t, err)
	second, err := p.CreateUpload(ctx, core.FileUpload{UserID: user.ID, OriginalFilename: "b.csv", FilePath: "uploads/b.csv"})
	require.NoError(t, err)

	t.Run("uploads", func(t *testing.T) {
		got, err := p.GetUpload(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "a.csv", got.OriginalFilename)
		assert.False(t, got.UploadedAt.IsZero())

		_, err = p.GetUpload(ctx, second.ID+1000)
		assert.ErrorIs(t, err, core.ErrNotFound)

		list, err := p.ListUploads(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
	})

	t.Run("cleanings", func(t *testing.T) {
		rec, err := p.CreateCleaning(ctx, core.CleaningRecord{
			FileID:          first.ID,
			UserID:          user.ID,
			CleanedFilePath: "cleaned/a.csv",
			CleaningSteps:   `{"steps":[]}`,
			Instruction:     "clean it",
			OriginalRows:    intPtr(6),
			CleanedRows:     intPtr(4),
		})
		require.NoError(t, err)
		assert.NotZero(t, rec.ID)

		got, err := p.GetCleaning(ctx, rec.ID)
		require.NoError(t, err)
		require.NotNil(t, got.OriginalRows)
		require.NotNil(t, got.CleanedRows)
		assert.Equal(t, 6, *got.OriginalRows)
		assert.Equal(t, 4, *got.CleanedRows)
		assert.Equal(t, "clean it", got.Instruction)

		// Rows from before the count columns existed.
		var legacyID int64
		require.NoError(t, pool.QueryRow(ctx, `
			INSERT INTO cleaning_history (file_id, user_id, cleaned_file_path, cleaning_steps)
			VALUES ($1, $2, 'cleaned/old.csv', '{}') RETURNING id`,
			second.ID, user.ID).Scan(&legacyID))

		legacy, err := p.GetCleaning(ctx, legacyID)
		require.NoError(t, err)
		assert.Nil(t, legacy.OriginalRows)
		assert.Nil(t, legacy.CleanedRows)

		_, err = p.GetCleaning(ctx, legacyID+1000)
		assert.ErrorIs(t, err, core.ErrNotFound)

		list, err := p.ListCleanings(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, rec.ID, list[0].ID)
		assert.Equal(t, legacyID, list[1].ID)
	})

	t.Run("edited migration is refused", func(t *testing.T) {
		_, err := pool.Exec(ctx, "UPDATE schema_migrations SET checksum = 'stale' WHERE version = '0001'")
		require.NoError(t, err)
		assert.ErrorIs(t, Migrate(ctx, pool), ErrChecksumMismatch)
	})
}
