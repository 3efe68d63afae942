package models

import (
	"time"
)

// ChatRole is a manager's role within a chat.
type ChatRole string

const (
	// ChatRoleOwner marks the profile that started the chat.
	ChatRoleOwner ChatRole = "OWNER"
	// ChatRoleAdmin marks a co-manager.
	ChatRoleAdmin ChatRole = "ADMIN"
)

// Chat is a message thread between profiles. It owns its participants, managers and messages.
type Chat struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Participants []ChatParticipant `gorm:"constraint:OnDelete:CASCADE" json:"participants,omitempty"`
	Managers     []ChatManager     `gorm:"constraint:OnDelete:CASCADE" json:"managers,omitempty"`
	Messages     []Message         `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ChatParticipant links a profile to a chat.
type ChatParticipant struct {
	ChatID    uint      `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	ProfileID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"profile_id"`
	Profile   *Profile  `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatManager grants a profile management rights over a chat.
type ChatManager struct {
	ChatID    uint      `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	ProfileID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"profile_id"`
	Profile   *Profile  `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"-"`
	Role      ChatRole  `gorm:"type:varchar(16);not null;index" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a chat message.
//
// ProfileName is a display cache, not the source of truth: it snapshots the author's
// profile name when the message is sent and is never rewritten after a rename.
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChatID      uint      `gorm:"not null;index" json:"chat_id"`
	ProfileID   *uint     `gorm:"index" json:"profile_id"`
	Profile     *Profile  `gorm:"foreignKey:ProfileID;constraint:OnDelete:SET NULL" json:"-"`
	ProfileName string    `gorm:"size:64;not null" json:"profile_name"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
