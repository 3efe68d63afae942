// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewDB opens a private in-memory SQLite database with the full schema and foreign keys on.
// It is closed when the test ends.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := database.OpenSQLite(dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with a profile named after the username. The password is "password1".
func CreateUser(t *testing.T, db *gorm.DB, username string, isAdmin bool) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username: username,
		Password: string(hash),
		IsAdmin:  isAdmin,
		Profile:  &models.Profile{Name: username},
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePost inserts a post authored by authorID.
func CreatePost(t *testing.T, db *gorm.DB, authorID uint, title string, published bool) *models.Post {
	t.Helper()

	post := &models.Post{
		AuthorID:  authorID,
		Title:     title,
		Content:   "content of " + title,
		Published: published,
	}
	require.NoError(t, db.Create(post).Error)
	return post
}

// CreateImage inserts an image row owned by ownerID. No object is written to storage.
func CreateImage(t *testing.T, db *gorm.DB, ownerID uint, path string) *models.Image {
	t.Helper()

	img := &models.Image{
		OwnerID:  ownerID,
		Src:      "http://localhost/uploads/" + path,
		Path:     path,
		MimeType: "image/webp",
		Width:    10,
		Height:   10,
	}
	require.NoError(t, db.Create(img).Error)
	return img
}

// Count returns the number of rows of model, or of the named table, matching the optional condition.
func Count(t *testing.T, db *gorm.DB, model interface{}, query ...interface{}) int64 {
	t.Helper()

	var n int64
	var tx *gorm.DB
	if table, ok := model.(string); ok {
		tx = db.Table(table)
	} else {
		tx = db.Model(model)
	}
	if len(query) > 0 {
		tx = tx.Where(query[0], query[1:]...)
	}
	require.NoError(t, tx.Count(&n).Error)
	return n
}
