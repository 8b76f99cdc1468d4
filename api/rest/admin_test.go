package rest_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/kasuganosora/neighborly/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin_RequiresStaff(t *testing.T) {
	s := newServer(t)
	bob, bobTok := s.user(t, "bob@x.com")

	path := fmt.Sprintf("/api/admin/users/%d/sessions", bob.ID)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, path, "", nil).Code)
	w := s.do(http.MethodGet, path, bobTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))
}

func TestAdmin_ListAndRevokeUserSessions(t *testing.T) {
	s := newServer(t)
	_, adminTok := s.user(t, "root@x.com", func(u *model.User) { u.Role = model.RoleAdmin })
	bob, bobTok := s.user(t, "bob@x.com")
	s.login(t, "bob@x.com")

	path := fmt.Sprintf("/api/admin/users/%d/sessions", bob.ID)
	w := s.do(http.MethodGet, path, adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = s.do(http.MethodDelete, path, adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["revoked"])
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/me", bobTok, nil).Code)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/admin/users/999/sessions", adminTok, nil).Code)
}

func TestAdmin_SchedulerTasks(t *testing.T) {
	s := newServer(t)
	_, modTok := s.user(t, "mod@x.com", func(u *model.User) { u.Role = model.RoleModerator })
	s.sched.AddTicker("session_sweep", time.Hour, func(context.Context) {})

	w := s.do(http.MethodGet, "/api/admin/scheduler", modTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode(t, w)["tasks"].([]interface{})
	require.Len(t, tasks, 1)
	assert.Equal(t, "session_sweep", tasks[0].(map[string]interface{})["name"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	// httptest requests come from 192.0.2.1, outside the allow-list.
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/metrics", "", nil).Code)

	req := newRequestFrom(http.MethodGet, "/metrics", "127.0.0.1")
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
