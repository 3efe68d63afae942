package service

import (
	"context"
	"strings"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowUnfollow(t *testing.T) {
	db := testutil.NewDB(t)
	pub := newRecordingPublisher()
	svc := NewProfileService(db, NewNotificationService(db, pub))
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)
	bob := testutil.CreateUser(t, db, "bob", false)

	_, err := svc.Follow(ctx, actorOf(alice), alice.Profile.ID)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = svc.Follow(ctx, actorOf(alice), 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	target, err := svc.Follow(ctx, actorOf(alice), bob.Profile.ID)
	require.NoError(t, err)
	assert.True(t, target.Following)
	assert.Equal(t, int64(1), target.FollowersCount)

	target, err = svc.Follow(ctx, actorOf(alice), bob.Profile.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), target.FollowersCount)
	require.Len(t, pub.For(bob.ID), 1, "following twice notifies once")
	assert.Equal(t, models.NotificationFollow, pub.For(bob.ID)[0].Kind)

	followers, err := svc.Followers(ctx, Anonymous, bob.Profile.ID, defaultPage())
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, alice.Profile.ID, followers[0].ID)

	following, err := svc.Following(ctx, actorOf(bob), alice.Profile.ID, defaultPage())
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, bob.Profile.ID, following[0].ID)

	target, err = svc.Unfollow(ctx, actorOf(alice), bob.Profile.ID)
	require.NoError(t, err)
	assert.False(t, target.Following)
	assert.Zero(t, target.FollowersCount)

	_, err = svc.Unfollow(ctx, actorOf(alice), bob.Profile.ID)
	require.NoError(t, err)
}

func TestUpdateOwnProfile(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewProfileService(db, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)

	blank := "  "
	_, err := svc.UpdateOwn(ctx, actorOf(alice), UpdateProfileInput{Name: &blank})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	long := strings.Repeat("b", 501)
	_, err = svc.UpdateOwn(ctx, actorOf(alice), UpdateProfileInput{Bio: &long})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	name, bio := "Alice A.", "writes things"
	profile, err := svc.UpdateOwn(ctx, actorOf(alice), UpdateProfileInput{Name: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", profile.Name)
	assert.Equal(t, "writes things", profile.Bio)

	found, err := svc.List(ctx, Anonymous, "alice a", defaultPage())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, profile.ID, found[0].ID)
}
