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

func TestPostRepository_GetVisible(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author", false)
	other := testutil.CreateUser(t, db, "other", false)
	admin := testutil.CreateUser(t, db, "root", true)
	draft := testutil.CreatePost(t, db, author.ID, "draft", false)
	public := testutil.CreatePost(t, db, author.ID, "public", true)

	tests := []struct {
		name     string
		postID   uint
		viewerID uint
		visible  bool
	}{
		{"anonymous sees published", public.ID, 0, true},
		{"anonymous cannot see draft", draft.ID, 0, false},
		{"stranger cannot see draft", draft.ID, other.ID, false},
		{"admin cannot see draft", draft.ID, admin.ID, false},
		{"author sees draft", draft.ID, author.ID, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, err := repo.GetVisible(ctx, tt.postID, tt.viewerID)
			if !tt.visible {
				assert.Nil(t, post)
				assert.True(t, models.IsCode(err, models.CodeNotFound))
				assert.Contains(t, err.Error(), "not found")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.postID, post.ID)
			require.NotNil(t, post.Author)
			assert.Equal(t, "author", post.Author.Username)
		})
	}
}

func TestPostRepository_ListFilters(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db)
	tags := NewTagRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", false)
	bob := testutil.CreateUser(t, db, "bob", false)

	goTags, err := tags.FindOrCreate(ctx, []string{"go", "db"})
	require.NoError(t, err)
	require.Len(t, goTags, 2)

	tagged := &models.Post{AuthorID: alice.ID, Title: "Gophers", Content: "channels", Published: true, Tags: goTags}
	require.NoError(t, repo.Create(ctx, tagged))
	testutil.CreatePost(t, db, alice.ID, "Alice draft", false)
	testutil.CreatePost(t, db, bob.ID, "Bob public", true)

	anon, err := repo.List(ctx, PostFilter{}, 0)
	require.NoError(t, err)
	assert.Len(t, anon, 2)

	mine, err := repo.List(ctx, PostFilter{AuthorID: alice.ID}, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	byTag, err := repo.List(ctx, PostFilter{Tag: "GO"}, 0)
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, tagged.ID, byTag[0].ID)
	assert.Len(t, byTag[0].Tags, 2)

	search, err := repo.List(ctx, PostFilter{Query: "CHANNEL"}, 0)
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "Gophers", search[0].Title)
}

func TestPostRepository_DetailsAndDelete(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db)
	votes := NewVoteRepository(db)
	tags := NewTagRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author", false)
	reader := testutil.CreateUser(t, db, "reader", false)

	tagRows, err := tags.FindOrCreate(ctx, []string{"news"})
	require.NoError(t, err)
	post := &models.Post{AuthorID: author.ID, Title: "t", Content: "c", Published: true, Tags: tagRows}
	require.NoError(t, repo.Create(ctx, post))

	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, AuthorID: reader.ID, Content: "hi"}).Error)
	_, err = votes.Upvote(ctx, post.ID, reader.ID)
	require.NoError(t, err)

	got, err := repo.GetVisible(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.VotesCount)
	assert.Equal(t, int64(1), got.CommentsCount)
	assert.True(t, got.Upvoted)

	anon, err := repo.GetVisible(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.False(t, anon.Upvoted)

	require.NoError(t, repo.Delete(ctx, post.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Comment{}))
	assert.Zero(t, testutil.Count(t, db, &models.Vote{}))
	assert.Zero(t, testutil.Count(t, db, "post_tags"))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Tag{}), "tags outlive their posts")

	assert.True(t, models.IsCode(repo.Delete(ctx, post.ID), models.CodeNotFound))
}

func TestPostRepository_UpdateAndReplaceTags(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db)
	tags := NewTagRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author", false)
	post := testutil.CreatePost(t, db, author.ID, "before", true)

	post.Title = "after"
	post.Published = false
	require.NoError(t, repo.Update(ctx, post))

	newTags, err := tags.FindOrCreate(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, repo.ReplaceTags(ctx, post, newTags))

	got, err := repo.GetVisible(ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
	assert.False(t, got.Published)
	assert.Len(t, got.Tags, 2)

	missing := uint(12345)
	post.ImageID = &missing
	err = repo.Update(ctx, post)
	assert.True(t, models.IsCode(err, models.CodeInvalidReference))
}

func TestPostRepository_CountByImage(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner", false)
	img := testutil.CreateImage(t, db, owner.ID, "images/1/a.webp")
	for i := 0; i < 2; i++ {
		p := testutil.CreatePost(t, db, owner.ID, "p", true)
		require.NoError(t, db.Model(p).Update("image_id", img.ID).Error)
	}

	n, err := repo.CountByImage(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestVoteRepository_Upvote_ConflictIsNoop(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "votes"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	inserted, err := repo.Upvote(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Toggle(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "voter", false)
	post := testutil.CreatePost(t, db, user.ID, "p", true)

	inserted, err := repo.Upvote(ctx, post.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Upvote(ctx, post.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := repo.Count(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	removed, err := repo.Remove(ctx, post.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Remove(ctx, post.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.Upvote(ctx, 9999, user.ID)
	assert.True(t, models.IsCode(err, models.CodeInvalidReference))
}
