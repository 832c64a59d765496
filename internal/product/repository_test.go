package product

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-harness/internal/db"
)

func TestRepositoryLifecycle(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	database, err := sql.Open("pgx", url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	ctx := context.Background()
	require.NoError(t, db.RunMigrations(ctx, database))

	repo := NewRepository(database, nil)
	require.NoError(t, repo.Reset(ctx))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedProducts(), all)

	created, err := repo.Create(ctx, ProductInput{Name: "Desk", Price: 12.5})
	require.NoError(t, err)
	parsed, err := uuid.Parse(created.ProductID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	got, err := repo.Get(ctx, created.ProductID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	require.NoError(t, repo.Reset(ctx))
	_, err = repo.Get(ctx, created.ProductID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}
