package service

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/jobs"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatFixture(t *testing.T) (*ChatService, *jobs.MemoryQueue, *jobs.Worker) {
	t.Helper()
	db := testutil.NewDB(t)
	q := jobs.NewMemoryQueue(16)
	w := jobs.NewWorker(q, jobs.WithInitialDelay(time.Millisecond), jobs.WithMaxTries(2))
	svc := NewChatService(db, w, NewNotificationService(db, nil), ChatOptions{})
	w.Register(TaskDeleteDuplicateChats, svc.DeleteDuplicates)
	return svc, q, w
}

func TestSendToParticipants_RepeatedSendsShareOneChat(t *testing.T) {
	svc, q, _ := newChatFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, svc.db, "alice", false)
	bob := testutil.CreateUser(t, svc.db, "bob", false)

	first, err := svc.SendToParticipants(ctx, alice.ID, []uint{bob.Profile.ID}, "hi")
	require.NoError(t, err)
	second, err := svc.SendToParticipants(ctx, alice.ID, []uint{bob.Profile.ID, bob.Profile.ID}, "again")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), testutil.Count(t, svc.db, &models.Chat{}))
	require.Len(t, second.Messages, 2)
	assert.Equal(t, "hi", second.Messages[0].Body)
	assert.Equal(t, "again", second.Messages[1].Body)
	assert.Len(t, second.Participants, 2)
	assert.Zero(t, q.Len(), "no duplicates means no cleanup task")
}

func TestSendToParticipants_OwnershipIsPerInitiator(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, svc.db, "alice", false)
	bob := testutil.CreateUser(t, svc.db, "bob", false)

	a, err := svc.SendToParticipants(ctx, alice.ID, []uint{bob.Profile.ID}, "from alice")
	require.NoError(t, err)
	b, err := svc.SendToParticipants(ctx, bob.ID, []uint{alice.Profile.ID}, "from bob")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestSendToParticipants_UnknownParticipant(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	alice := testutil.CreateUser(t, svc.db, "alice", false)

	_, err := svc.SendToParticipants(context.Background(), alice.ID, []uint{9999}, "hello")
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeInvalidReference))
	assert.Zero(t, testutil.Count(t, svc.db, &models.Chat{}))
	assert.Zero(t, testutil.Count(t, svc.db, &models.Message{}))
}

func TestSendToParticipants_Validation(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	alice := testutil.CreateUser(t, svc.db, "alice", false)

	_, err := svc.SendToParticipants(context.Background(), alice.ID, nil, "  ")
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestSendToParticipants_TimeoutLeavesNoWrites(t *testing.T) {
	db := testutil.NewDB(t)
	q := jobs.NewMemoryQueue(16)
	svc := NewChatService(db, jobs.NewWorker(q), nil, ChatOptions{TxTimeout: time.Nanosecond})
	alice := testutil.CreateUser(t, db, "alice", false)
	bob := testutil.CreateUser(t, db, "bob", false)

	_, err := svc.SendToParticipants(context.Background(), alice.ID, []uint{bob.Profile.ID}, "too slow")
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, testutil.Count(t, db, &models.Chat{}))
	assert.Zero(t, testutil.Count(t, db, &models.Message{}))
	assert.Zero(t, q.Len())
}

func TestSendToParticipants_HealsDuplicates(t *testing.T) {
	svc, q, w := newChatFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, svc.db, "alice", false)
	bob := testutil.CreateUser(t, svc.db, "bob", false)

	members := func() []models.ChatParticipant {
		return []models.ChatParticipant{{ProfileID: alice.Profile.ID}, {ProfileID: bob.Profile.ID}}
	}
	owner := func() []models.ChatManager {
		return []models.ChatManager{{ProfileID: alice.Profile.ID, Role: models.ChatRoleOwner}}
	}
	empty1 := &models.Chat{Participants: members(), Managers: owner()}
	withHistory := &models.Chat{
		Participants: members(),
		Managers:     owner(),
		Messages:     []models.Message{{ProfileID: &alice.Profile.ID, ProfileName: "alice", Body: "earlier"}},
	}
	empty2 := &models.Chat{Participants: members(), Managers: owner()}
	for _, c := range []*models.Chat{empty1, withHistory, empty2} {
		require.NoError(t, svc.db.Create(c).Error)
	}

	chat, err := svc.SendToParticipants(ctx, alice.ID, []uint{bob.Profile.ID}, "now")
	require.NoError(t, err)
	assert.Equal(t, withHistory.ID, chat.ID, "the candidate with messages wins")

	require.Equal(t, 1, q.Len())
	task, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, TaskDeleteDuplicateChats, task.Kind)
	require.NoError(t, w.Process(ctx, *task))

	assert.Equal(t, int64(1), testutil.Count(t, svc.db, &models.Chat{}))
	remaining, err := svc.Get(ctx, alice.ID, withHistory.ID)
	require.NoError(t, err)
	require.Len(t, remaining.Messages, 2)
	assert.Equal(t, "earlier", remaining.Messages[0].Body)
	assert.Equal(t, "now", remaining.Messages[1].Body)
}

func TestDeleteDuplicates_SkipsChatsNotOwned(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, svc.db, "alice", false)
	bob := testutil.CreateUser(t, svc.db, "bob", false)

	bobs := &models.Chat{
		Participants: []models.ChatParticipant{{ProfileID: alice.Profile.ID}, {ProfileID: bob.Profile.ID}},
		Managers:     []models.ChatManager{{ProfileID: bob.Profile.ID, Role: models.ChatRoleOwner}},
	}
	require.NoError(t, svc.db.Create(bobs).Error)

	raw := []byte(`{"owner_profile_id":` + uintString(alice.Profile.ID) + `,"keep_chat_id":0,"chat_ids":[` + uintString(bobs.ID) + `]}`)
	require.NoError(t, svc.DeleteDuplicates(ctx, raw))
	assert.Equal(t, int64(1), testutil.Count(t, svc.db, &models.Chat{}))
}

func TestDeleteDuplicates_BadPayloadIsPermanent(t *testing.T) {
	_, _, w := newChatFixture(t)
	task := jobs.Task{ID: "t1", Kind: TaskDeleteDuplicateChats, Payload: []byte(`{"chat_ids":[]}`)}
	start := time.Now()
	assert.Error(t, w.Process(context.Background(), task))
	assert.Less(t, time.Since(start), time.Second)
}

func TestChatAccess(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, svc.db, "alice", false)
	bob := testutil.CreateUser(t, svc.db, "bob", false)
	carol := testutil.CreateUser(t, svc.db, "carol", false)
	admin := testutil.CreateUser(t, svc.db, "root", true)

	chat, err := svc.SendToParticipants(ctx, alice.ID, []uint{bob.Profile.ID}, "hi")
	require.NoError(t, err)

	_, err = svc.Get(ctx, carol.ID, chat.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	msg, err := svc.PostMessage(ctx, bob.ID, chat.ID, "reply")
	require.NoError(t, err)
	assert.Equal(t, "bob", msg.ProfileName)

	err = svc.Delete(ctx, actorOf(bob), chat.ID)
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))

	list, err := svc.List(ctx, bob.ID, defaultPage())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Leave(ctx, bob.ID, chat.ID))
	_, err = svc.Get(ctx, bob.ID, chat.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	require.NoError(t, svc.Delete(ctx, actorOf(admin), chat.ID))
	assert.Zero(t, testutil.Count(t, svc.db, &models.Chat{}))
}
