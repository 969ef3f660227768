package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/config"
	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/pkg/dates"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:", MaxConnections: 1}
	cfg.Security.AllowUserHeader = true
	require.NoError(t, cfg.Validate())

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func call(t *testing.T, a *app, method, path string, user uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("X-User-ID", user.String())
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestApp_HealthAndAuth(t *testing.T) {
	a := newTestApp(t)

	w := call(t, a, http.MethodGet, "/health", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(t, a, http.MethodGet, "/metrics", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(t, a, http.MethodGet, "/api/v1/me", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(t, a, http.MethodOptions, "/api/v1/requests", uuid.Nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestApp_ApprovalWorkflow(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	requester, designer, approver, admin := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	dir := identity.NewDirectory(a.db.Gorm)
	require.NoError(t, dir.Grant(ctx, requester, identity.RoleRequester))
	require.NoError(t, dir.Grant(ctx, designer, identity.RoleDesigner))
	require.NoError(t, dir.Grant(ctx, approver, identity.RoleApprover))
	require.NoError(t, dir.Grant(ctx, admin, identity.RoleAdmin))

	w := call(t, a, http.MethodPut, "/api/v1/settings/default-designer", admin, map[string]string{"designer_id": designer.String()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	due := dates.Of(time.Now().UTC()).AddDays(3)
	w = call(t, a, http.MethodPost, "/api/v1/requests", requester, map[string]interface{}{
		"title": "Conference banner", "type_id": "banner", "priority": "Normal", "due_date": due.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Request struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		} `json:"request"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "DesignerReview", created.Request.Status)
	base := "/api/v1/requests/" + created.Request.ID.String()

	w = call(t, a, http.MethodGet, "/api/v1/inbox?role=Designer&category=newRequests", designer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var box struct {
		Items []struct {
			Unread bool `json:"unread"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &box))
	require.Len(t, box.Items, 1)
	assert.True(t, box.Items[0].Unread)

	w = call(t, a, http.MethodPost, "/api/v1/inbox/requests/"+created.Request.ID.String()+"/view", designer, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	steps := []struct {
		path string
		user uuid.UUID
		body interface{}
	}{
		{"/start-design", designer, nil},
		{"/complete-design", designer, map[string]interface{}{"needs_approval": true, "approver_id": approver.String()}},
		{"/process-approval", approver, map[string]interface{}{"approved": true, "comment": "Ship it"}},
	}
	for _, step := range steps {
		w = call(t, a, http.MethodPost, base+step.path, step.user, step.body)
		require.Equal(t, http.StatusOK, w.Code, "%s: %s", step.path, w.Body.String())
	}

	w = call(t, a, http.MethodGet, base+"/history?order=asc", requester, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []struct {
			NewStatus string `json:"new_status"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.History, 4)
	assert.Equal(t, "Completed", history.History[3].NewStatus)

	a.notify.Wait()
	w = call(t, a, http.MethodGet, "/api/v1/notifications", requester, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox struct {
		Notifications []struct {
			Category string `json:"category"`
		} `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inbox))
	assert.NotEmpty(t, inbox.Notifications)

	w = call(t, a, http.MethodGet, "/api/v1/capacity/availability.xlsx?start="+due.String()+"&end="+due.String(), requester, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(t, a, http.MethodPost, "/api/v1/jobs/ledger_audit/run", requester, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(t, a, http.MethodPost, "/api/v1/jobs/ledger_audit/run", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var audit struct {
		Checked    int         `json:"checked"`
		Mismatched []uuid.UUID `json:"mismatched"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &audit))
	assert.Equal(t, 1, audit.Checked)
	assert.Empty(t, audit.Mismatched)
}
