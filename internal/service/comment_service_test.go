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

func TestCommentLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	pub := newRecordingPublisher()
	svc := NewCommentService(db, NewNotificationService(db, pub))
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author", false)
	reader := testutil.CreateUser(t, db, "reader", false)
	admin := testutil.CreateUser(t, db, "admin", true)
	post := testutil.CreatePost(t, db, author.ID, "Hello", true)

	c, err := svc.Create(ctx, actorOf(reader), post.ID, "  nice post  ")
	require.NoError(t, err)
	assert.Equal(t, "nice post", c.Content)
	require.Len(t, pub.For(author.ID), 1)
	assert.Equal(t, models.NotificationComment, pub.For(author.ID)[0].Kind)

	_, err = svc.Create(ctx, actorOf(author), post.ID, "thanks")
	require.NoError(t, err)
	assert.Len(t, pub.For(author.ID), 1, "commenting on your own post does not notify")

	_, err = svc.Update(ctx, actorOf(author), post.ID, c.ID, "hijack")
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))

	updated, err := svc.Update(ctx, actorOf(reader), post.ID, c.ID, "very nice post")
	require.NoError(t, err)
	assert.Equal(t, "very nice post", updated.Content)

	_, err = svc.Get(ctx, Anonymous, post.ID+1, c.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound), "comment must belong to the post in the path")

	require.NoError(t, svc.Delete(ctx, actorOf(admin), post.ID, c.ID))
	_, err = svc.Get(ctx, Anonymous, post.ID, c.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestComment_Validation(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewCommentService(db, nil)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author", false)
	post := testutil.CreatePost(t, db, author.ID, "Hello", true)

	_, err := svc.Create(ctx, Anonymous, post.ID, "hi")
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))

	_, err = svc.Create(ctx, actorOf(author), post.ID, "   ")
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = svc.Create(ctx, actorOf(author), post.ID, strings.Repeat("x", 100000))
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestComment_OnDraftFollowsPost(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewCommentService(db, nil)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author", false)
	other := testutil.CreateUser(t, db, "other", false)
	draft := testutil.CreatePost(t, db, author.ID, "Draft", false)

	_, err := svc.Create(ctx, actorOf(other), draft.ID, "sneaky")
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	// A comment written by other while the post was public stays hidden from other once
	// the post goes back to draft.
	require.NoError(t, db.Model(draft).Update("published", true).Error)
	c, err := svc.Create(ctx, actorOf(other), draft.ID, "early")
	require.NoError(t, err)
	require.NoError(t, db.Model(draft).Update("published", false).Error)

	_, err = svc.Get(ctx, actorOf(other), draft.ID, c.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	got, err := svc.Get(ctx, actorOf(author), draft.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "early", got.Content)
}
