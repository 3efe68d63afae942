package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository stores per-profile notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForRecipient(ctx context.Context, recipientID uint, unseenOnly bool, page Page) ([]models.Notification, error)
	MarkSeen(ctx context.Context, id, recipientID uint) error
	MarkAllSeen(ctx context.Context, recipientID uint) (int64, error)
	Delete(ctx context.Context, id, recipientID uint) error
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return writeError(err, "recipient_id")
	}
	return nil
}

func (r *notificationRepository) ListForRecipient(ctx context.Context, recipientID uint, unseenOnly bool, page Page) ([]models.Notification, error) {
	var items []models.Notification
	db := page.apply(r.db.WithContext(ctx)).
		Preload("Actor").
		Where("recipient_id = ?", recipientID)
	if unseenOnly {
		db = db.Where("seen = ?", false)
	}
	if err := db.Order("created_at DESC").Order("id DESC").Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

// MarkSeen flags one notification. Notifications of other recipients are NotFound.
func (r *notificationRepository) MarkSeen(ctx context.Context, id, recipientID uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("seen", true)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}

func (r *notificationRepository) MarkAllSeen(ctx context.Context, recipientID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND seen = ?", recipientID, false).
		Update("seen", true)
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id, recipientID uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}
