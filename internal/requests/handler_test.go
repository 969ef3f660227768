package requests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/capacity"
	"design-desk/request-portal/request-portal-backend/internal/identity"
)

func (r stubRoles) ResolveRoles(ctx context.Context, userID uuid.UUID) ([]identity.Role, error) {
	return r[userID], nil
}

type stubTimeline struct{}

func (stubTimeline) RequestTimeline(view *RequestView) ([]byte, error) {
	return []byte("%PDF-1.3 " + view.Request.Title), nil
}

func newTestRouter(t *testing.T, f *fixture) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	roles := stubRoles{
		f.requester.ID: f.requester.Roles,
		f.designer.ID:  f.designer.Roles,
		f.approver.ID:  f.approver.Roles,
		f.admin.ID:     f.admin.Roles,
		f.stranger.ID:  f.stranger.Roles,
	}
	router := gin.New()
	api := router.Group("/api/v1", identity.Authenticate(identity.AuthConfig{AllowUserHeader: true}, roles, zap.NewNop()))
	NewHandler(f.svc, stubTimeline{}, zap.NewNop()).RegisterRoutes(api)
	return router
}

func doJSON(router *gin.Engine, method, path string, actor identity.Actor, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", actor.ID.String())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type errorEnvelope struct {
	Error apierrors.APIError `json:"error"`
}

func TestHandler_CreateAndAct(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(t, f)

	w := doJSON(router, http.MethodPost, "/api/v1/requests", f.requester, map[string]interface{}{
		"title":       "Poster",
		"type_id":     "poster",
		"priority":    "Normal",
		"due_date":    day(4).String(),
		"detail_kind": "print",
		"details":     map[string]interface{}{"size": "A2", "quantity": 10},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created TransitionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, StatusDesignerReview, created.Request.Status)
	assert.JSONEq(t, `{"size":"A2","quantity":10,"paper_stock":"","double_sided":false,"color_mode":""}`, string(created.Request.Details))
	id := created.Request.ID.String()

	w = doJSON(router, http.MethodPost, "/api/v1/requests/"+id+"/start-design", f.requester, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/requests/"+id+"/process-approval", f.approver, map[string]interface{}{"approved": true})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, apierrors.CodeInvalidTransition, env.Error.Code)
	assert.Equal(t, "DesignerReview", env.Error.Details["current_status"])

	w = doJSON(router, http.MethodPost, "/api/v1/requests/"+id+"/start-design", f.designer, map[string]string{"comment": "On it"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, http.MethodGet, "/api/v1/requests/"+id+"/history?order=asc", f.requester, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []HistoryEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.History, 2)
	assert.Equal(t, "On it", history.History[1].Comment)

	w = doJSON(router, http.MethodGet, "/api/v1/requests/"+id+"/timeline.pdf", f.designer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestHandler_CapacityConflict(t *testing.T) {
	f := newFixture(t)
	f.settings.limits = capacity.Limits{MaxNormalPerDay: 1, MaxUrgentPerDay: 1, OrderableDaysInFuture: 30}
	router := newTestRouter(t, f)
	body := map[string]interface{}{"title": "Flyer", "type_id": "flyer", "priority": "Urgent", "due_date": day(2).String()}

	w := doJSON(router, http.MethodPost, "/api/v1/requests", f.requester, body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/requests", f.requester, body)
	require.Equal(t, http.StatusConflict, w.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, apierrors.CodeCapacityExceeded, env.Error.Code)
	assert.Equal(t, "Urgent", env.Error.Details["priority"])
}

func TestHandler_MultipartAttachments(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(t, f)
	req := f.create(t, capacity.PriorityNormal, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("payload", `{"comment":"Please add the new logo"}`))
	part, err := mw.CreateFormFile("files", "logo.svg")
	require.NoError(t, err)
	_, err = part.Write([]byte("<svg/>"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	httpReq := httptest.NewRequest(http.MethodPost, "/api/v1/requests/"+req.ID.String()+"/return-for-correction", &buf)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("X-User-ID", f.designer.ID.String())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res TransitionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, StatusPendingCorrection, res.Request.Status)
	assert.Equal(t, "Please add the new logo", res.Entry.Comment)
	require.Len(t, res.Attachments, 1)
	assert.Equal(t, "logo.svg", res.Attachments[0].OriginalName)

	w = doJSON(router, http.MethodGet, "/api/v1/requests/"+req.ID.String()+"/attachments/"+res.Attachments[0].ID.String(), f.requester, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<svg/>", w.Body.String())

	w = doJSON(router, http.MethodGet, "/api/v1/requests/"+req.ID.String()+"/attachments/"+res.Attachments[0].ID.String()+"/url", f.requester, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var link struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	assert.True(t, strings.HasPrefix(link.URL, "memory://test-bucket/"), link.URL)
}

func TestHandler_BadInput(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(t, f)

	w := doJSON(router, http.MethodGet, "/api/v1/requests/not-a-uuid", f.requester, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/requests?status=Archived", f.requester, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
