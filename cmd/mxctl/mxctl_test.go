package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lokmanguedri/motivex/internal/catalog"
)

type fakeCategories struct {
	slugs map[string]bool
}

func (f *fakeCategories) CreateCategory(_ context.Context, in catalog.CategoryInput) (catalog.Category, error) {
	if f.slugs[in.Slug] {
		return catalog.Category{}, catalog.ErrConflict
	}
	f.slugs[in.Slug] = true
	return catalog.Category{Slug: in.Slug, NameFR: in.NameFR, NameAR: in.NameAR}, nil
}

func TestSeedCategories(t *testing.T) {
	repo := &fakeCategories{slugs: map[string]bool{"freinage": true}}

	n, err := seedCategories(context.Background(), repo, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, len(defaultCategories)-1, n)
	assert.True(t, repo.slugs["electricite"])
	assert.True(t, repo.slugs["equipement-pilote"])

	n, err = seedCategories(context.Background(), repo, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAdminFlagsPrepare(t *testing.T) {
	email, hash, phone, err := adminFlags{Email: " Admin@Motivex.DZ ", Password: "s3cure-pass", Phone: "+213 551 23 45 67"}.prepare()
	require.NoError(t, err)
	assert.Equal(t, "admin@motivex.dz", email)
	assert.Equal(t, "0551234567", phone)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cure-pass")))

	_, _, _, err = adminFlags{Email: "admin@motivex.dz", Password: "short", Phone: "0551234567"}.prepare()
	assert.Error(t, err)

	_, _, _, err = adminFlags{Email: "admin@motivex.dz", Password: "s3cure-pass", Phone: "12345"}.prepare()
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd(&app{})
	for _, path := range [][]string{{"migrate", "up"}, {"migrate", "down"}, {"create-admin"}, {"seed-categories"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
