package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/service"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, "root", true)
	alice := testutil.CreateUser(t, ts.db, "alice", false)
	adminToken, aliceToken := ts.token(t, admin), ts.token(t, alice)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/users"},
		{http.MethodPatch, fmt.Sprintf("/api/admin/users/%d", alice.ID)},
		{http.MethodPost, "/api/admin/purge"},
		{http.MethodGet, "/api/admin/feature-flags"},
	} {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			resp, raw := ts.do(t, route.method, route.path, aliceToken, map[string]bool{"is_admin": true})
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.Equal(t, "UnauthorizedError", decodeError(t, raw).Name)
		})
	}

	resp, raw := ts.do(t, http.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []models.User
	require.NoError(t, json.Unmarshal(raw, &users))
	assert.Len(t, users, 2)

	resp, raw = ts.do(t, http.MethodGet, "/api/admin/feature-flags", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"purge":"off"`)

	t.Run("is_admin is required", func(t *testing.T) {
		resp, raw := ts.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d", alice.ID), adminToken, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "is_admin", decodeError(t, raw).Issues[0].Field)
	})

	t.Run("self demotion is refused", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d", admin.ID), adminToken, map[string]bool{"is_admin": false})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("promotion applies to existing tokens", func(t *testing.T) {
		resp, raw := ts.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d", alice.ID), adminToken, map[string]bool{"is_admin": true})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		assert.Contains(t, string(raw), `"is_admin":true`)

		resp, _ = ts.do(t, http.MethodGet, "/api/users", aliceToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPatch, "/api/admin/users/9999", adminToken, map[string]bool{"is_admin": true})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestForcePurge(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, "root", true)
	alice := testutil.CreateUser(t, ts.db, "alice", false)
	testutil.CreatePost(t, ts.db, alice.ID, "Doomed", true)
	kept := testutil.CreatePost(t, ts.db, admin.ID, "Kept", true)

	resp, raw := ts.do(t, http.MethodPost, "/api/admin/purge", ts.token(t, admin), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var report service.PurgeReport
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, int64(1), report.Users)
	assert.False(t, report.RanAt.IsZero())

	assert.Equal(t, int64(1), testutil.Count(t, ts.db, &models.User{}))
	assert.Equal(t, int64(1), testutil.Count(t, ts.db, &models.Post{}, "id = ?", kept.ID))
	assert.Equal(t, int64(1), testutil.Count(t, ts.db, &models.PurgeWatermark{}))
}

func TestUserSelfService(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice", false)
	bob := testutil.CreateUser(t, ts.db, "bob", false)
	token := ts.token(t, alice)

	resp, raw := ts.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", bob.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"username":"bob"`)

	resp, raw = ts.do(t, http.MethodPatch, "/api/users/me", token, map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(raw))

	resp, raw = ts.do(t, http.MethodPatch, "/api/users/me", token, map[string]string{"username": "alicia"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Contains(t, string(raw), `"username":"alicia"`)

	resp, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", bob.ID), token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", alice.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, raw = ts.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, raw)
}
