package service

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupAndAuthenticate(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db, nil)
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Username: " writer ", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "writer", user.Username)
	require.NotNil(t, user.Profile)
	assert.Equal(t, "writer", user.Profile.Name, "profile name defaults to the username")
	assert.NotEqual(t, "secret123", user.Password)

	_, err = svc.Signup(ctx, SignupInput{Username: "writer", Password: "secret123"})
	assert.True(t, models.IsCode(err, models.CodeUniqueViolation))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Profile{}))

	_, err = svc.Signup(ctx, SignupInput{Username: "x!", Password: "short"})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
	assert.Len(t, appErr.Issues, 2)

	got, err := svc.Authenticate(ctx, "writer", "secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "writer", "wrong1234")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateSelf(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db, nil)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "writer", false)
	testutil.CreateUser(t, db, "taken", false)

	taken := "taken"
	_, err := svc.UpdateSelf(ctx, actorOf(user), UpdateUserInput{Username: &taken})
	assert.True(t, models.IsCode(err, models.CodeUniqueViolation))

	name, password := "renamed", "newpass99"
	updated, err := svc.UpdateSelf(ctx, actorOf(user), UpdateUserInput{Username: &name, Password: &password})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Username)

	_, err = svc.Authenticate(ctx, "renamed", "newpass99")
	require.NoError(t, err)
}

func TestAdminOperations(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db, nil)
	ctx := context.Background()
	admin := testutil.CreateUser(t, db, "root", true)
	user := testutil.CreateUser(t, db, "writer", false)

	_, err := svc.List(ctx, actorOf(user), defaultPage())
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))
	users, err := svc.List(ctx, actorOf(admin), defaultPage())
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = svc.SetAdmin(ctx, actorOf(user), user.ID, true)
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))
	_, err = svc.SetAdmin(ctx, actorOf(admin), admin.ID, false)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	promoted, err := svc.SetAdmin(ctx, actorOf(admin), user.ID, true)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin)

	_, err = svc.SetAdmin(ctx, actorOf(admin), 9999, true)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db, nil)
	ctx := context.Background()

	admin, created, err := svc.EnsureAdmin(ctx, "root", "rootpass123")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, admin.IsAdmin)

	again, created, err := svc.EnsureAdmin(ctx, "root", "ignored999")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.User{}))

	_, err = svc.Authenticate(ctx, "root", "rootpass123")
	require.NoError(t, err, "existing password is kept")

	testutil.CreateUser(t, db, "plain", false)
	promoted, created, err := svc.EnsureAdmin(ctx, "plain", "whatever123")
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, promoted.IsAdmin)
}

func TestDeleteUser(t *testing.T) {
	db := testutil.NewDB(t)
	store := newMemStorage()
	svc := NewUserService(db, store)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "writer", false)
	other := testutil.CreateUser(t, db, "other", false)
	admin := testutil.CreateUser(t, db, "root", true)

	testutil.CreateImage(t, db, user.ID, "images/1/a.webp")
	post := testutil.CreatePost(t, db, user.ID, "tagged", true)
	require.NoError(t, db.Model(post).Association("Tags").Append(&models.Tag{Name: "go"}))

	assert.True(t, models.IsCode(svc.Delete(ctx, actorOf(other), user.ID), models.CodeUnauthorized))

	require.NoError(t, svc.Delete(ctx, actorOf(user), user.ID))
	assert.Zero(t, testutil.Count(t, db, &models.User{}, "id = ?", user.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Post{}, "author_id = ?", user.ID))
	assert.Zero(t, testutil.Count(t, db, "post_tags"))
	assert.Equal(t, []string{"images/1/a.webp"}, store.Removed())

	require.NoError(t, svc.Delete(ctx, actorOf(admin), other.ID))
	assert.True(t, models.IsCode(svc.Delete(ctx, actorOf(admin), other.ID), models.CodeNotFound))
}
