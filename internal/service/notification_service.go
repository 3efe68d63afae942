package service

import (
	"context"
	"log/slog"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"

	"gorm.io/gorm"
)

// NotificationPublisher pushes a stored notification to the recipient's live connections.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, userID uint, n *models.Notification) error
}

// Notice is the content of a notification before it is addressed.
type Notice struct {
	Kind   models.NotificationKind
	Header string
	Body   string
	URL    string
}

// NotificationService persists and delivers notifications.
type NotificationService struct {
	notifications repository.NotificationRepository
	profiles      repository.ProfileRepository
	publisher     NotificationPublisher
}

// NewNotificationService returns a service on db. publisher may be nil.
func NewNotificationService(db *gorm.DB, publisher NotificationPublisher) *NotificationService {
	return &NotificationService{
		notifications: repository.NewNotificationRepository(db),
		profiles:      repository.NewProfileRepository(db),
		publisher:     publisher,
	}
}

// NotifyUser addresses notice to the profile of recipientUserID. Delivery is best-effort:
// failures are logged and never returned.
func (s *NotificationService) NotifyUser(ctx context.Context, recipientUserID uint, actor *models.Profile, notice Notice) {
	if s == nil {
		return
	}
	profile, err := s.profiles.GetByUserID(ctx, recipientUserID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Notification recipient lookup failed",
			slog.Uint64("recipient_user_id", uint64(recipientUserID)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.deliver(ctx, profile, actor, notice)
}

// NotifyProfiles addresses notice to every profile in ids except the actor's.
func (s *NotificationService) NotifyProfiles(ctx context.Context, ids []uint, actor *models.Profile, notice Notice) {
	if s == nil || len(ids) == 0 {
		return
	}
	profiles, err := s.profiles.ListByIDs(ctx, ids)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Notification recipients lookup failed", slog.String("error", err.Error()))
		return
	}
	for i := range profiles {
		s.deliver(ctx, &profiles[i], actor, notice)
	}
}

func (s *NotificationService) deliver(ctx context.Context, recipient *models.Profile, actor *models.Profile, notice Notice) {
	n := &models.Notification{
		RecipientID: recipient.ID,
		Kind:        notice.Kind,
		Header:      notice.Header,
		Body:        notice.Body,
		URL:         notice.URL,
	}
	if actor != nil {
		if actor.ID == recipient.ID {
			return
		}
		n.ActorID = &actor.ID
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		middleware.Logger.WarnContext(ctx, "Persist notification failed",
			slog.Uint64("recipient_id", uint64(recipient.ID)),
			slog.String("kind", string(notice.Kind)),
			slog.String("error", err.Error()),
		)
		return
	}
	n.Actor = actor

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishNotification(ctx, recipient.UserID, n); err != nil {
		middleware.Logger.WarnContext(ctx, "Publish notification failed",
			slog.Uint64("notification_id", uint64(n.ID)),
			slog.String("error", err.Error()),
		)
	}
}

// List returns userID's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, unseenOnly bool, page repository.Page) ([]models.Notification, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.notifications.ListForRecipient(ctx, profile.ID, unseenOnly, page)
}

// MarkSeen flags one of userID's notifications. Others' notifications are NotFound.
func (s *NotificationService) MarkSeen(ctx context.Context, userID, id uint) error {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	return s.notifications.MarkSeen(ctx, id, profile.ID)
}

func (s *NotificationService) MarkAllSeen(ctx context.Context, userID uint) (int64, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.notifications.MarkAllSeen(ctx, profile.ID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	return s.notifications.Delete(ctx, id, profile.ID)
}
