package repository

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_VisibilityFollowsPost(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author", false)
	commenter := testutil.CreateUser(t, db, "commenter", false)
	draft := testutil.CreatePost(t, db, author.ID, "draft", false)
	public := testutil.CreatePost(t, db, author.ID, "public", true)

	onDraft := &models.Comment{PostID: draft.ID, AuthorID: commenter.ID, Content: "hidden"}
	onPublic := &models.Comment{PostID: public.ID, AuthorID: commenter.ID, Content: "shown"}
	require.NoError(t, repo.Create(ctx, onDraft))
	require.NoError(t, repo.Create(ctx, onPublic))

	_, err := repo.GetVisible(ctx, onDraft.ID, commenter.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound), "the comment's own author cannot see it on a private post")

	_, err = repo.GetVisible(ctx, onDraft.ID, 0)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	got, err := repo.GetVisible(ctx, onDraft.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "hidden", got.Content)
	require.NotNil(t, got.Post)
	assert.Equal(t, draft.ID, got.Post.ID)

	got, err = repo.GetVisible(ctx, onPublic.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, got.Author)
	assert.Equal(t, "commenter", got.Author.Username)
}

func TestCommentRepository_CRUD(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "user", false)
	post := testutil.CreatePost(t, db, user.ID, "p", true)

	err := repo.Create(ctx, &models.Comment{PostID: 4040, AuthorID: user.ID, Content: "x"})
	assert.True(t, models.IsCode(err, models.CodeInvalidReference))

	first := &models.Comment{PostID: post.ID, AuthorID: user.ID, Content: "one"}
	second := &models.Comment{PostID: post.ID, AuthorID: user.ID, Content: "two"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	require.NoError(t, repo.UpdateContent(ctx, first.ID, "uno"))

	list, err := repo.ListByPost(ctx, post.ID, Page{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "uno", list[0].Content)
	assert.Equal(t, "two", list[1].Content)

	require.NoError(t, repo.Delete(ctx, second.ID))
	assert.True(t, models.IsCode(repo.Delete(ctx, second.ID), models.CodeNotFound))
	assert.True(t, models.IsCode(repo.UpdateContent(ctx, second.ID, "x"), models.CodeNotFound))
}
