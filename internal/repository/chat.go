package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatCandidate is an existing chat that matches a dedup lookup.
type ChatCandidate struct {
	ID           uint
	MessageCount int64
}

// ChatRepository defines the interface for chat data operations
type ChatRepository interface {
	FindCandidates(ctx context.Context, ownerProfileID uint, participantIDs []uint, exact bool) ([]ChatCandidate, error)
	Create(ctx context.Context, chat *models.Chat) error
	AddParticipants(ctx context.Context, chatID uint, profileIDs []uint) error
	AddMessage(ctx context.Context, msg *models.Message) error
	Get(ctx context.Context, id uint) (*models.Chat, error)
	ListForProfile(ctx context.Context, profileID uint, page Page) ([]models.Chat, error)
	ListMessages(ctx context.Context, chatID uint, page Page) ([]models.Message, error)
	IsParticipant(ctx context.Context, chatID, profileID uint) (bool, error)
	HasRole(ctx context.Context, chatID, profileID uint, role models.ChatRole) (bool, error)
	RemoveParticipant(ctx context.Context, chatID, profileID uint) (bool, error)
	Delete(ctx context.Context, ids ...uint) (int64, error)
	DeleteEmpty(ctx context.Context) (int64, error)
}

// chatRepository implements ChatRepository
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// FindCandidates returns chats owned by ownerProfileID whose participants include every id in
// participantIDs, oldest first. With exact set the participant sets must also be equal.
// participantIDs must be deduplicated.
func (r *chatRepository) FindCandidates(ctx context.Context, ownerProfileID uint, participantIDs []uint, exact bool) ([]ChatCandidate, error) {
	if len(participantIDs) == 0 {
		return nil, nil
	}

	db := r.db.WithContext(ctx).
		Table("chats").
		Select("chats.id, (SELECT COUNT(*) FROM messages WHERE messages.chat_id = chats.id) AS message_count").
		Where("EXISTS (SELECT 1 FROM chat_managers WHERE chat_managers.chat_id = chats.id AND chat_managers.profile_id = ? AND chat_managers.role = ?)",
			ownerProfileID, models.ChatRoleOwner).
		Where("(SELECT COUNT(*) FROM chat_participants WHERE chat_participants.chat_id = chats.id AND chat_participants.profile_id IN ?) = ?",
			participantIDs, len(participantIDs))
	if exact {
		db = db.Where("(SELECT COUNT(*) FROM chat_participants WHERE chat_participants.chat_id = chats.id) = ?", len(participantIDs))
	}

	var candidates []ChatCandidate
	if err := db.Order("chats.created_at ASC").Order("chats.id ASC").Scan(&candidates).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return candidates, nil
}

// Create inserts the chat with its nested participants, managers and messages.
func (r *chatRepository) Create(ctx context.Context, chat *models.Chat) error {
	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		return writeError(err, "participant_ids")
	}
	return nil
}

// AddParticipants links profiles to the chat, ignoring ones already present.
func (r *chatRepository) AddParticipants(ctx context.Context, chatID uint, profileIDs []uint) error {
	if len(profileIDs) == 0 {
		return nil
	}
	rows := make([]models.ChatParticipant, 0, len(profileIDs))
	for _, id := range profileIDs {
		rows = append(rows, models.ChatParticipant{ChatID: chatID, ProfileID: id})
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return writeError(err, "participant_ids")
	}
	return nil
}

func (r *chatRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return writeError(err, "chat_id")
	}
	if err := r.db.WithContext(ctx).Model(&models.Chat{ID: msg.ChatID}).Update("updated_at", msg.CreatedAt).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Get loads the chat with participants, managers and messages oldest first.
func (r *chatRepository) Get(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("chat_participants.profile_id ASC")
		}).
		Preload("Participants.Profile").
		Preload("Managers").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.created_at ASC").Order("messages.id ASC")
		}).
		First(&chat, id).Error
	if err != nil {
		return nil, readError(err, "Chat", id)
	}
	return &chat, nil
}

// ListForProfile returns chats the profile participates in, most recently active first.
func (r *chatRepository) ListForProfile(ctx context.Context, profileID uint, page Page) ([]models.Chat, error) {
	var chats []models.Chat
	err := page.apply(r.db.WithContext(ctx)).
		Joins("JOIN chat_participants cp ON cp.chat_id = chats.id AND cp.profile_id = ?", profileID).
		Preload("Participants.Profile").
		Preload("Managers").
		Order("chats.updated_at DESC").
		Order("chats.id DESC").
		Find(&chats).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return chats, nil
}

// ListMessages returns a page of the newest messages in chronological order.
func (r *chatRepository) ListMessages(ctx context.Context, chatID uint, page Page) ([]models.Message, error) {
	var messages []models.Message
	err := page.apply(r.db.WithContext(ctx)).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	// Fetched newest first to page from the end; callers want oldest -> newest.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *chatRepository) IsParticipant(ctx context.Context, chatID, profileID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND profile_id = ?", chatID, profileID).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *chatRepository) HasRole(ctx context.Context, chatID, profileID uint, role models.ChatRole) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatManager{}).
		Where("chat_id = ? AND profile_id = ? AND role = ?", chatID, profileID, role).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

// RemoveParticipant drops the profile from the chat along with any manager role it held.
func (r *chatRepository) RemoveParticipant(ctx context.Context, chatID, profileID uint) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("chat_id = ? AND profile_id = ?", chatID, profileID).Delete(&models.ChatParticipant{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected > 0
		return tx.Where("chat_id = ? AND profile_id = ?", chatID, profileID).Delete(&models.ChatManager{}).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return removed, nil
}

// Delete removes the chats; participants, managers and messages cascade.
func (r *chatRepository) Delete(ctx context.Context, ids ...uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Chat{})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteEmpty removes chats that no longer have any participant.
func (r *chatRepository) DeleteEmpty(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM chat_participants WHERE chat_participants.chat_id = chats.id)").
		Delete(&models.Chat{})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}
