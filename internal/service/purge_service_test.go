package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type purgeWorld struct {
	admin     *models.User
	user      *models.User
	adminPost *models.Post
	userPost  *models.Post
}

// seedPurgeWorld gives a non-admin a post, a comment, a vote and an image, plus admin data.
func seedPurgeWorld(t *testing.T, db *gorm.DB) purgeWorld {
	t.Helper()
	w := purgeWorld{
		admin: testutil.CreateUser(t, db, "root", true),
		user:  testutil.CreateUser(t, db, "guest", false),
	}
	w.adminPost = testutil.CreatePost(t, db, w.admin.ID, "admin post", true)
	w.userPost = testutil.CreatePost(t, db, w.user.ID, "guest post", true)
	require.NoError(t, db.Model(w.userPost).Association("Tags").Append(&models.Tag{Name: "ephemeral"}))

	require.NoError(t, db.Create(&models.Comment{PostID: w.userPost.ID, AuthorID: w.user.ID, Content: "mine"}).Error)
	require.NoError(t, db.Create(&models.Comment{PostID: w.adminPost.ID, AuthorID: w.user.ID, Content: "on admin"}).Error)
	require.NoError(t, db.Create(&models.Comment{PostID: w.adminPost.ID, AuthorID: w.admin.ID, Content: "admin"}).Error)
	require.NoError(t, db.Create(&models.Vote{PostID: w.adminPost.ID, UserID: w.user.ID, IsUpvote: true}).Error)
	testutil.CreateImage(t, db, w.user.ID, "images/2/guest.webp")
	testutil.CreateImage(t, db, w.admin.ID, "images/1/admin.webp")
	return w
}

func newPurgeFixture(t *testing.T, flags string) (*PurgeService, *gorm.DB, *memStorage, *time.Time) {
	t.Helper()
	db := testutil.NewDB(t)
	store := newMemStorage()
	svc := NewPurgeService(db, store, featureflags.NewManager(flags), time.Hour)
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return svc, db, store, &clock
}

func TestPurge_RunsOnlyWhenDue(t *testing.T) {
	svc, db, store, clock := newPurgeFixture(t, "")
	ctx := context.Background()
	w := seedPurgeWorld(t, db)

	report, err := svc.RunIfDue(ctx)
	require.NoError(t, err)
	assert.Nil(t, report, "first sight only stamps the watermark")

	*clock = clock.Add(59 * time.Minute)
	report, err = svc.RunIfDue(ctx)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, int64(2), testutil.Count(t, db, &models.User{}))

	*clock = clock.Add(2 * time.Minute)
	report, err = svc.RunIfDue(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, int64(1), report.Users)
	assert.Equal(t, int64(1), report.Tags)
	assert.Equal(t, 1, report.Objects)

	assert.Zero(t, testutil.Count(t, db, &models.User{}, "id = ?", w.user.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Profile{}, "user_id = ?", w.user.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Post{}, "author_id = ?", w.user.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Comment{}, "author_id = ?", w.user.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Vote{}))
	assert.Zero(t, testutil.Count(t, db, &models.Image{}, "owner_id = ?", w.user.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Tag{}))
	assert.Equal(t, []string{"images/2/guest.webp"}, store.Removed())

	assert.Equal(t, int64(1), testutil.Count(t, db, &models.User{}, "id = ?", w.admin.ID))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Post{}, "id = ?", w.adminPost.ID))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Comment{}, "author_id = ?", w.admin.ID))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Image{}, "owner_id = ?", w.admin.ID))

	report, err = svc.RunIfDue(ctx)
	require.NoError(t, err)
	assert.Nil(t, report, "the interval restarts after a run")

	last, next, err := svc.Schedule(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, *clock, *last)
	assert.Equal(t, clock.Add(time.Hour), *next)
}

// failingPurge lets the watermark work and fails the bulk delete.
type failingPurge struct {
	repository.PurgeRepository
}

func (failingPurge) PurgeNonAdmins(context.Context) (*repository.PurgeResult, error) {
	return nil, errors.New("connection reset")
}

func TestPurge_FailedDeleteKeepsObjects(t *testing.T) {
	svc, db, store, _ := newPurgeFixture(t, "")
	w := seedPurgeWorld(t, db)
	_, err := store.Upload(context.Background(), "images/2/guest.webp", []byte("webp"), "image/webp", false)
	require.NoError(t, err)
	svc.purge = failingPurge{PurgeRepository: svc.purge}

	_, err = svc.Force(context.Background())
	require.Error(t, err)

	assert.Empty(t, store.Removed())
	assert.True(t, store.Has("images/2/guest.webp"))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Image{}, "owner_id = ?", w.user.ID))
}

func TestPurge_SecondInstanceLosesClaim(t *testing.T) {
	svc, db, _, clock := newPurgeFixture(t, "")
	ctx := context.Background()
	seedPurgeWorld(t, db)

	other := NewPurgeService(db, newMemStorage(), nil, time.Hour)
	other.now = func() time.Time { return *clock }

	_, err := svc.RunIfDue(ctx)
	require.NoError(t, err)
	*clock = clock.Add(2 * time.Hour)

	first, err := svc.RunIfDue(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := other.RunIfDue(ctx)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestPurge_FeatureFlagOff(t *testing.T) {
	svc, db, _, clock := newPurgeFixture(t, "purge=off")
	ctx := context.Background()
	seedPurgeWorld(t, db)

	_, err := svc.RunIfDue(ctx)
	require.NoError(t, err)
	*clock = clock.Add(48 * time.Hour)
	report, err := svc.RunIfDue(ctx)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, int64(2), testutil.Count(t, db, &models.User{}))

	forced, err := svc.Force(ctx)
	require.NoError(t, err)
	require.NotNil(t, forced)
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.User{}))
}

func TestPurge_TriggerRunsInBackground(t *testing.T) {
	svc, db, _, clock := newPurgeFixture(t, "")
	seedPurgeWorld(t, db)

	svc.Trigger(context.Background())
	svc.Wait()
	*clock = clock.Add(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Trigger(ctx)
	cancel()
	svc.Wait()

	assert.Equal(t, int64(1), testutil.Count(t, db, &models.User{}), "a canceled request does not cancel the purge")
}
