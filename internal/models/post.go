package models

import (
	"time"
)

// Post is a blog entry. Unpublished posts are visible to their author only.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Published bool      `gorm:"not null;default:false;index" json:"published"`
	ImageID   *uint     `gorm:"index" json:"image_id"`
	Image     *Image    `gorm:"foreignKey:ImageID;constraint:OnDelete:SET NULL" json:"image,omitempty"`
	Tags      []Tag     `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE" json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// VotesCount is not persisted; computed at query time
	VotesCount int64 `gorm:"->;-:migration" json:"votes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int64 `gorm:"->;-:migration" json:"comments_count"`
	// Upvoted reports whether the requesting user has voted on this post
	Upvoted bool `gorm:"->;-:migration" json:"upvoted"`
}

// Tag is a lower-cased label shared between posts.
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:40;uniqueIndex;not null" json:"name"`

	PostsCount int64 `gorm:"->;-:migration" json:"posts_count,omitempty"`
}

// Comment belongs to a post and inherits that post's visibility.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Vote is a user's upvote on a post. Absence of a row means no vote.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_votes_post_user" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_votes_post_user;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	IsUpvote  bool      `gorm:"not null" json:"is_upvote"`
	CreatedAt time.Time `json:"created_at"`
}

// Image is an uploaded object. Posts reference images without owning them.
type Image struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
	Owner     *User     `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Src       string    `gorm:"size:512;uniqueIndex;not null" json:"src"`
	Path      string    `gorm:"size:512;uniqueIndex;not null" json:"path"`
	Alt       string    `gorm:"size:300" json:"alt"`
	MimeType  string    `gorm:"size:64;not null" json:"mime_type"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
