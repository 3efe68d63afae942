package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeChat(t *testing.T, raw []byte) models.Chat {
	t.Helper()
	var chat models.Chat
	require.NoError(t, json.Unmarshal(raw, &chat), string(raw))
	return chat
}

func TestSendChat(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice", false)
	bob := testutil.CreateUser(t, ts.db, "bob", false)
	aliceToken, bobToken := ts.token(t, alice), ts.token(t, bob)

	send := func(token string, to uint, body string) (*http.Response, []byte) {
		return ts.do(t, http.MethodPost, "/api/chats", token, map[string]any{
			"participant_ids": []uint{to},
			"body":            body,
		})
	}

	resp, raw := send(aliceToken, bob.Profile.ID, "hi bob")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	first := decodeChat(t, raw)
	assert.Len(t, first.Participants, 2)

	resp, raw = send(aliceToken, bob.Profile.ID, "are you there?")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	assert.Equal(t, first.ID, decodeChat(t, raw).ID)

	resp, raw = ts.do(t, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", first.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var messages []models.Message
	require.NoError(t, json.Unmarshal(raw, &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "hi bob", messages[0].Body)

	t.Run("reply from a non-owner starts their own chat", func(t *testing.T) {
		resp, raw := send(bobToken, alice.Profile.ID, "hello back")
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.NotEqual(t, first.ID, decodeChat(t, raw).ID)

		resp, raw = ts.do(t, http.MethodGet, "/api/chats", bobToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var chats []models.Chat
		require.NoError(t, json.Unmarshal(raw, &chats))
		assert.Len(t, chats, 2)
	})

	t.Run("unknown participant", func(t *testing.T) {
		resp, raw := send(aliceToken, 9999, "anyone?")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "InvalidReferenceError", decodeError(t, raw).Name)
	})

	t.Run("blank body", func(t *testing.T) {
		resp, raw := send(aliceToken, bob.Profile.ID, "   ")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "ValidationError", decodeError(t, raw).Name)
	})

	t.Run("requires auth", func(t *testing.T) {
		resp, raw := send("", bob.Profile.ID, "hi")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Empty(t, raw)
	})
}

func TestChatAccess(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice", false)
	bob := testutil.CreateUser(t, ts.db, "bob", false)
	carol := testutil.CreateUser(t, ts.db, "carol", false)

	resp, raw := ts.do(t, http.MethodPost, "/api/chats", ts.token(t, alice), map[string]any{
		"participant_ids": []uint{bob.Profile.ID},
		"body":            "private",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	chat := decodeChat(t, raw)
	path := fmt.Sprintf("/api/chats/%d", chat.ID)

	resp, raw = ts.do(t, http.MethodGet, path, ts.token(t, carol), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, decodeError(t, raw).Message, "not found")

	resp, _ = ts.do(t, http.MethodPost, path+"/messages", ts.token(t, carol), map[string]string{"body": "let me in"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = ts.do(t, http.MethodPost, path+"/messages", ts.token(t, bob), map[string]string{"body": "ok"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	resp, _ = ts.do(t, http.MethodDelete, path, ts.token(t, bob), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, path+"/leave", ts.token(t, bob), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, path, ts.token(t, bob), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, path, ts.token(t, alice), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, testutil.Count(t, ts.db, &models.Chat{}))
}
