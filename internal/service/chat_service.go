package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"inkwell/internal/jobs"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// TaskDeleteDuplicateChats removes chats that lost a deduplication tie-break.
const TaskDeleteDuplicateChats = "chat.delete_duplicates"

const defaultChatTxTimeout = 30 * time.Second

// TaskEnqueuer accepts background tasks. *jobs.Worker satisfies it.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task jobs.Task) error
}

// DuplicateChatsPayload names the chats to drop for one owner.
type DuplicateChatsPayload struct {
	OwnerProfileID uint   `json:"owner_profile_id"`
	KeepChatID     uint   `json:"keep_chat_id"`
	ChatIDs        []uint `json:"chat_ids"`
}

// ChatOptions tunes chat deduplication.
type ChatOptions struct {
	// ExactMatch requires candidate chats to have exactly the requested participants
	// instead of a superset of them.
	ExactMatch bool
	// TxTimeout bounds the find-or-create transaction.
	TxTimeout time.Duration
}

// ChatService provides chat business logic. Chats are addressed by profile.
type ChatService struct {
	db       *gorm.DB
	chats    repository.ChatRepository
	profiles repository.ProfileRepository
	queue    TaskEnqueuer
	notify   *NotificationService
	opts     ChatOptions
}

// NewChatService returns a ChatService. queue may be nil, in which case duplicates are
// left for a later send to heal.
func NewChatService(db *gorm.DB, queue TaskEnqueuer, notify *NotificationService, opts ChatOptions) *ChatService {
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = defaultChatTxTimeout
	}
	return &ChatService{
		db:       db,
		chats:    repository.NewChatRepository(db),
		profiles: repository.NewProfileRepository(db),
		queue:    queue,
		notify:   notify,
		opts:     opts,
	}
}

func validateMessage(body string) error {
	var issues validation.Issues
	issues.Required("body", body)
	issues.MaxLen("body", body, validation.MessageMax)
	return issues.Err("Invalid message")
}

// participantSet returns {initiator} ∪ targets, deduplicated and sorted.
func participantSet(initiator uint, targets []uint) []uint {
	seen := map[uint]struct{}{initiator: {}}
	out := []uint{initiator}
	for _, id := range targets {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// pickCandidate prefers the oldest candidate that already has messages, else the oldest.
// candidates must be non-empty and ordered oldest first.
func pickCandidate(candidates []repository.ChatCandidate) (keep uint, others []uint) {
	keep = candidates[0].ID
	for _, c := range candidates {
		if c.MessageCount > 0 {
			keep = c.ID
			break
		}
	}
	for _, c := range candidates {
		if c.ID != keep {
			others = append(others, c.ID)
		}
	}
	return keep, others
}

// SendToParticipants delivers body from userID's profile to targetIDs, reusing the chat the
// user owns with those participants when there is one. Repeated sends to the same set
// accumulate in one chat. Losing duplicate candidates are deleted by a background task
// after commit.
func (s *ChatService) SendToParticipants(ctx context.Context, userID uint, targetIDs []uint, body string) (chat *models.Chat, err error) {
	body = strings.TrimSpace(body)
	var issues validation.Issues
	issues.Check("body", validateMessage(body))
	if len(targetIDs) == 0 {
		issues.Add("participant_ids", "at least one participant is required")
	}
	if len(targetIDs) > validation.ParticipantMax {
		issues.Add("participant_ids", fmt.Sprintf("at most %d participants", validation.ParticipantMax))
	}
	if err := issues.Err("Invalid chat message"); err != nil {
		return nil, err
	}

	span, ctx := observability.NewSpan(ctx, "chat.send_to_participants",
		attribute.Int("chat.targets", len(targetIDs)),
		attribute.Bool("chat.exact_match", s.opts.ExactMatch),
	)
	defer func() { span.End(err) }()

	txCtx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()

	var (
		initiator  *models.Profile
		members    []uint
		chatID     uint
		duplicates []uint
		resolution string
	)
	err = s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		profiles := repository.NewProfileRepository(tx)
		chats := repository.NewChatRepository(tx)

		var err error
		initiator, err = profiles.GetByUserID(txCtx, userID)
		if err != nil {
			return err
		}
		members = participantSet(initiator.ID, targetIDs)

		missing, err := profiles.MissingIDs(txCtx, members)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return models.NewInvalidReferenceError("participant_ids", fmt.Errorf("unknown profiles %v", missing))
		}

		candidates, err := chats.FindCandidates(txCtx, initiator.ID, members, s.opts.ExactMatch)
		if err != nil {
			return err
		}

		msg := models.Message{ProfileID: &initiator.ID, ProfileName: initiator.Name, Body: body}

		if len(candidates) == 0 {
			created := &models.Chat{
				Managers: []models.ChatManager{{ProfileID: initiator.ID, Role: models.ChatRoleOwner}},
				Messages: []models.Message{msg},
			}
			if err := chats.Create(txCtx, created); err != nil {
				return err
			}
			if err := chats.AddParticipants(txCtx, created.ID, members); err != nil {
				return err
			}
			chatID, resolution = created.ID, "created"
			return nil
		}

		chatID, duplicates = pickCandidate(candidates)
		msg.ChatID = chatID
		if err := chats.AddMessage(txCtx, &msg); err != nil {
			return err
		}
		resolution = "reused"
		return nil
	})
	if err != nil {
		if errors.Is(txCtx.Err(), context.DeadlineExceeded) {
			return nil, models.NewInternalError(fmt.Errorf("chat transaction exceeded %s: %w", s.opts.TxTimeout, err))
		}
		return nil, err
	}

	observability.ChatSends.WithLabelValues(resolution).Inc()
	span.AddAttributes(attribute.String("chat.resolution", resolution), attribute.Int("chat.duplicates", len(duplicates)))

	if len(duplicates) > 0 {
		s.enqueueCleanup(ctx, DuplicateChatsPayload{
			OwnerProfileID: initiator.ID,
			KeepChatID:     chatID,
			ChatIDs:        duplicates,
		})
	}
	s.notifyMessage(ctx, initiator, chatID, members, body)

	return s.chats.Get(ctx, chatID)
}

func (s *ChatService) enqueueCleanup(ctx context.Context, payload DuplicateChatsPayload) {
	logger := middleware.Logger.With(slog.Any("chat_ids", payload.ChatIDs))
	if s.queue == nil {
		logger.WarnContext(ctx, "No task queue; duplicate chats left in place")
		return
	}
	task, err := jobs.NewTask(TaskDeleteDuplicateChats, payload)
	if err == nil {
		err = s.queue.Enqueue(ctx, task)
	}
	if err != nil {
		observability.BackgroundTaskFailures.WithLabelValues(TaskDeleteDuplicateChats).Inc()
		logger.ErrorContext(ctx, "Enqueue duplicate chat cleanup failed", slog.String("error", err.Error()))
	}
}

// DeleteDuplicates is the background handler for TaskDeleteDuplicateChats. Chats that are
// no longer owned by the payload's owner are skipped.
func (s *ChatService) DeleteDuplicates(ctx context.Context, raw json.RawMessage) error {
	var payload DuplicateChatsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return backoff.Permanent(fmt.Errorf("decode %s payload: %w", TaskDeleteDuplicateChats, err))
	}
	if payload.OwnerProfileID == 0 || len(payload.ChatIDs) == 0 {
		return backoff.Permanent(fmt.Errorf("%s payload missing owner or chats", TaskDeleteDuplicateChats))
	}

	var doomed []uint
	for _, id := range payload.ChatIDs {
		if id == payload.KeepChatID {
			continue
		}
		owned, err := s.chats.HasRole(ctx, id, payload.OwnerProfileID, models.ChatRoleOwner)
		if err != nil {
			return err
		}
		if owned {
			doomed = append(doomed, id)
		}
	}

	deleted, err := s.chats.Delete(ctx, doomed...)
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "Deleted duplicate chats",
		slog.Uint64("owner_profile_id", uint64(payload.OwnerProfileID)),
		slog.Uint64("kept_chat_id", uint64(payload.KeepChatID)),
		slog.Int64("deleted", deleted),
	)
	return nil
}

func (s *ChatService) notifyMessage(ctx context.Context, author *models.Profile, chatID uint, members []uint, body string) {
	s.notify.NotifyProfiles(ctx, members, author, Notice{
		Kind:   models.NotificationMessage,
		Header: fmt.Sprintf("New message from %s", author.Name),
		Body:   truncate(body, 200),
		URL:    fmt.Sprintf("/chats/%d", chatID),
	})
}

// List returns the chats userID's profile participates in.
func (s *ChatService) List(ctx context.Context, userID uint, page repository.Page) ([]models.Chat, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.chats.ListForProfile(ctx, profile.ID, page.Normalize())
}

// participant resolves userID's profile and requires it to be in chatID. Non-participants
// get NotFound.
func (s *ChatService) participant(ctx context.Context, userID, chatID uint) (*models.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	ok, err := s.chats.IsParticipant(ctx, chatID, profile.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Chat", chatID)
	}
	return profile, nil
}

// Get returns a chat userID participates in.
func (s *ChatService) Get(ctx context.Context, userID, chatID uint) (*models.Chat, error) {
	if _, err := s.participant(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return s.chats.Get(ctx, chatID)
}

// Messages returns a page of the newest messages, oldest first.
func (s *ChatService) Messages(ctx context.Context, userID, chatID uint, page repository.Page) ([]models.Message, error) {
	if _, err := s.participant(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return s.chats.ListMessages(ctx, chatID, page.Normalize())
}

// PostMessage appends to an existing chat the user participates in.
func (s *ChatService) PostMessage(ctx context.Context, userID, chatID uint, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if err := validateMessage(body); err != nil {
		return nil, err
	}
	profile, err := s.participant(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{ChatID: chatID, ProfileID: &profile.ID, ProfileName: profile.Name, Body: body}
	if err := s.chats.AddMessage(ctx, msg); err != nil {
		return nil, err
	}

	if chat, err := s.chats.Get(ctx, chatID); err == nil {
		ids := make([]uint, 0, len(chat.Participants))
		for _, p := range chat.Participants {
			ids = append(ids, p.ProfileID)
		}
		s.notifyMessage(ctx, profile, chatID, ids, body)
	}
	return msg, nil
}

// Delete removes a chat. Owners and admins may delete; anyone else outside the chat sees
// NotFound.
func (s *ChatService) Delete(ctx context.Context, actor Actor, chatID uint) error {
	if actor.IsAdmin {
		if _, err := s.chats.Get(ctx, chatID); err != nil {
			return err
		}
	} else {
		profile, err := s.participant(ctx, actor.UserID, chatID)
		if err != nil {
			return err
		}
		owner, err := s.chats.HasRole(ctx, chatID, profile.ID, models.ChatRoleOwner)
		if err != nil {
			return err
		}
		if !owner {
			return models.NewUnauthorizedError("Only the chat owner can delete it")
		}
	}
	_, err := s.chats.Delete(ctx, chatID)
	return err
}

// Leave removes userID from the chat. A chat left without participants is deleted.
func (s *ChatService) Leave(ctx context.Context, userID, chatID uint) error {
	profile, err := s.participant(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if _, err := s.chats.RemoveParticipant(ctx, chatID, profile.ID); err != nil {
		return err
	}
	_, err = s.chats.DeleteEmpty(ctx)
	return err
}
