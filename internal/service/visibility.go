// Package service provides application business logic (posts, chats, votes, purge, etc.).
package service

import "inkwell/internal/models"

// Actor is the identity behind a request. The zero value is anonymous.
type Actor struct {
	UserID  uint
	IsAdmin bool
}

// Anonymous is the actor of an unauthenticated request.
var Anonymous = Actor{}

// Authenticated reports whether the actor is signed in.
func (a Actor) Authenticated() bool {
	return a.UserID != 0
}

// ID returns the actor's user ID, or nil when anonymous.
func (a Actor) ID() *uint {
	if !a.Authenticated() {
		return nil
	}
	id := a.UserID
	return &id
}

// CanReadPost reports whether actorID may read post. Published posts are public; drafts
// are visible to their author only. Admin status never widens read access.
func CanReadPost(post *models.Post, actorID *uint) bool {
	if post == nil {
		return false
	}
	return post.Published || (actorID != nil && *actorID == post.AuthorID)
}

// CanReadComment follows the parent post, regardless of who wrote the comment.
func CanReadComment(comment *models.Comment, actorID *uint) bool {
	if comment == nil {
		return false
	}
	return CanReadPost(comment.Post, actorID)
}

// CanMutate reports whether the actor may edit or delete a row written by authorID.
func CanMutate(authorID, actorID uint, isAdmin bool) bool {
	return isAdmin || (actorID != 0 && actorID == authorID)
}
