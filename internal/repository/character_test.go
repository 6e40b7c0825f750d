package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/figurine-hub/internal/models"
)

// TestCharacterRepository_FindByID 测试加载角色及其手办
func TestCharacterRepository_FindByID(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	ctx := context.Background()

	user := SeedUser(t, db, "owner@example.com")
	character := SeedCharacter(t, db, user.ID, "Gandalf")
	repo := NewCharacterRepository(db)

	found, err := repo.FindByID(ctx, character.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gandalf", found.Name)
	assert.Nil(t, found.Figurine)

	figurine := &models.Figurine{NfcUID: "TAG-001", OwnerID: user.ID, LinkedCharacterID: &character.ID}
	require.NoError(t, NewFigurineRepository(db).Create(ctx, figurine))

	found, err = repo.FindByID(ctx, character.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Figurine)
	assert.Equal(t, figurine.ID, found.Figurine.ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestCharacterRepository_ListByOwner 测试按所有者列出角色
func TestCharacterRepository_ListByOwner(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	ctx := context.Background()

	alice := SeedUser(t, db, "alice@example.com")
	bob := SeedUser(t, db, "bob@example.com")
	SeedCharacter(t, db, alice.ID, "Gandalf")
	SeedCharacter(t, db, alice.ID, "Frodo")
	SeedCharacter(t, db, bob.ID, "Sauron")

	page := NewPagination(1, 10)
	list, err := NewCharacterRepository(db).ListByOwner(ctx, alice.ID, page)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, int64(2), page.Total)
}

// TestUserRepository 测试用户查询
func TestUserRepository(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	ctx := context.Background()

	user := SeedUser(t, db, "alice@example.com")
	repo := NewUserRepository(db)

	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", found.Email)

	found, err = repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
