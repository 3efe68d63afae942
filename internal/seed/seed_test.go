package seed

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testOptions() Options {
	return Options{
		Users:           5,
		Posts:           12,
		CommentsPerPost: 3,
		RandomSeed:      42,
		BcryptCost:      bcrypt.MinCost,
	}
}

func TestSeed(t *testing.T) {
	db := testutil.NewDB(t)

	report, err := Seed(context.Background(), db, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Users)
	assert.Equal(t, 12, report.Posts)
	assert.Equal(t, int64(5), testutil.Count(t, db, &models.User{}))
	assert.Equal(t, int64(5), testutil.Count(t, db, &models.Profile{}))
	assert.Equal(t, int64(12), testutil.Count(t, db, &models.Post{}))
	assert.Equal(t, int64(report.Comments), testutil.Count(t, db, &models.Comment{}))
	assert.Equal(t, int64(report.Votes), testutil.Count(t, db, &models.Vote{}))
	assert.Equal(t, int64(report.Follows), testutil.Count(t, db, &models.Follow{}))

	// Only published posts collect comments and votes.
	var onDrafts int64
	require.NoError(t, db.Model(&models.Comment{}).
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("posts.published = ?", false).
		Count(&onDrafts).Error)
	assert.Zero(t, onDrafts)

	var self int64
	require.NoError(t, db.Model(&models.Follow{}).Where("follower_id = following_id").Count(&self).Error)
	assert.Zero(t, self)
}

func TestSeedUsersCanSignIn(t *testing.T) {
	db := testutil.NewDB(t)
	opts := testOptions()
	opts.Posts = 0

	_, err := Seed(context.Background(), db, opts)
	require.NoError(t, err)

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	for _, u := range users {
		assert.GreaterOrEqual(t, len(u.Username), 3)
		assert.LessOrEqual(t, len(u.Username), 32)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(DemoPassword)))
	}
}

func TestSeedClean(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Create(&models.PurgeWatermark{ID: models.PurgeWatermarkID}).Error)

	_, err := Seed(context.Background(), db, testOptions())
	require.NoError(t, err)

	opts := testOptions()
	opts.Users, opts.Posts, opts.Clean = 2, 1, true
	report, err := Seed(context.Background(), db, opts)
	require.NoError(t, err)

	assert.Equal(t, int64(2), testutil.Count(t, db, &models.User{}))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Post{}))
	assert.Equal(t, int64(report.Comments), testutil.Count(t, db, &models.Comment{}))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.PurgeWatermark{}))
}

func TestSeedRequiresUsers(t *testing.T) {
	_, err := Seed(context.Background(), testutil.NewDB(t), Options{})
	assert.Error(t, err)
}
