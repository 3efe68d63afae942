package models

import "time"

// NotificationKind classifies a notification.
type NotificationKind string

const (
	NotificationFollow  NotificationKind = "follow"
	NotificationComment NotificationKind = "comment"
	NotificationVote    NotificationKind = "vote"
	NotificationMessage NotificationKind = "message"
)

// Notification is addressed to a profile. ActorID is cleared when the actor is deleted.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notifications_recipient_seen" json:"recipient_id"`
	Recipient   *Profile         `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"-"`
	ActorID     *uint            `gorm:"index" json:"actor_id"`
	Actor       *Profile         `gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL" json:"actor,omitempty"`
	Kind        NotificationKind `gorm:"type:varchar(16);not null" json:"kind"`
	Header      string           `gorm:"size:200;not null" json:"header"`
	Body        string           `gorm:"size:500" json:"body"`
	URL         string           `gorm:"size:300" json:"url"`
	Seen        bool             `gorm:"not null;default:false;index:idx_notifications_recipient_seen" json:"seen"`
	CreatedAt   time.Time        `json:"created_at"`
}
