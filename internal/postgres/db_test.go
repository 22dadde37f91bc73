package postgres

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassifiers(t *testing.T) {
	unique := fmt.Errorf("insert order: %w", &pgconn.PgError{Code: "23505", ConstraintName: "orders_code_key"})

	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsUniqueViolation(unique, "orders_code_key"))
	assert.False(t, IsUniqueViolation(unique, "products_sku_key"))
	assert.False(t, IsForeignKeyViolation(unique))

	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsCheckViolation(&pgconn.PgError{Code: "23514"}))
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(nil))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% \_x\\y`, EscapeLike(`100% _x\y`))
	assert.Equal(t, "MX-2026", EscapeLike("MX-2026"))
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://app:secret@db:5432/motivex?sslmode=disable",
		MigrateURL("postgres://app:secret@db:5432/motivex?sslmode=disable"))
	assert.Equal(t, "pgx5://db/motivex", MigrateURL("postgresql://db/motivex"))
	assert.Equal(t, "pgx5://already", MigrateURL("pgx5://already"))
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	assert.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_init.up.sql")
	assert.Contains(t, names, "000001_init.down.sql")
}
