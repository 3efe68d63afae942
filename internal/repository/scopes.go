package repository

import "gorm.io/gorm"

// VisiblePosts limits a query over posts to rows viewerID may read: published posts plus the
// viewer's own drafts. A zero viewerID is anonymous and sees published posts only.
func VisiblePosts(viewerID uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if viewerID == 0 {
			return db.Where("posts.published = ?", true)
		}
		return db.Where("(posts.published = ? OR posts.author_id = ?)", true, viewerID)
	}
}

// VisibleComments joins comments to their post and applies VisiblePosts to it.
func VisibleComments(viewerID uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Joins("JOIN posts ON posts.id = comments.post_id").
			Scopes(VisiblePosts(viewerID))
	}
}
