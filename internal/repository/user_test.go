package repository

import (
	"context"
	"regexp"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}))

	user, err := repo.GetByID(context.Background(), 99)
	assert.Nil(t, user)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateAndLookup(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Username: "alice", Password: "hash", Profile: &models.Profile{Name: "Alice"}}
	require.NoError(t, repo.Create(ctx, user))
	require.NotZero(t, user.ID)
	require.NotZero(t, user.Profile.ID)

	found, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Alice", found.Profile.Name)

	missing, err := repo.GetByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Nil(t, missing, "usernames are case-sensitive")

	err = repo.Create(ctx, &models.User{Username: "alice", Password: "hash"})
	assert.True(t, models.IsCode(err, models.CodeUniqueViolation))
}

func TestUserRepository_SetAdminAndDelete(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "bob", false)

	require.NoError(t, repo.SetAdmin(ctx, user.ID, true))
	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	assert.True(t, models.IsCode(repo.SetAdmin(ctx, 999, true), models.CodeNotFound))

	require.NoError(t, repo.Delete(ctx, user.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Profile{}), "profile cascades with its user")
	assert.True(t, models.IsCode(repo.Delete(ctx, user.ID), models.CodeNotFound))
}
