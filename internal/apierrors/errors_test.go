package apierrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("create request: %w", CapacityExceeded("2025-06-01", "Urgent", 2))

	assert.Equal(t, KindCapacityExceeded, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrCapacityExceeded))
	assert.False(t, errors.Is(wrapped, ErrForbidden))
	assert.Equal(t, KindPersistence, KindOf(errors.New("boom")))
}

func TestInvalidTransitionCarriesContext(t *testing.T) {
	err := InvalidTransition("StartDesign", "Completed")

	assert.Contains(t, err.Error(), "Completed")
	assert.Equal(t, "Completed", err.Details["current_status"])
	assert.Equal(t, "StartDesign", err.Details["action"])
}

func TestPersistenceUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("update request", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindPersistence, err.Kind)
}

func respond(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Respond(c, zap.NewNop(), err)
	return w
}

func TestRespondStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{Validation("title", "title is required"), http.StatusBadRequest, CodeValidationFailed},
		{InvalidTransition("Resubmit", "Completed"), http.StatusBadRequest, CodeInvalidTransition},
		{Unauthorized("missing token"), http.StatusUnauthorized, CodeUnauthorized},
		{Forbidden("not the assigned designer"), http.StatusForbidden, CodeForbidden},
		{CapacityExceeded("2025-06-01", "Normal", 5), http.StatusConflict, CodeCapacityExceeded},
		{NotFound("request", "42"), http.StatusNotFound, CodeNotFound},
		{Persistence("commit", errors.New("disk full")), http.StatusInternalServerError, CodeInternalError},
		{errors.New("unexpected"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tc := range cases {
		w := respond(tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())

		var body struct {
			Error APIError `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Error.Code)
		assert.NotEmpty(t, body.Error.Message)
	}
}

func TestRespondHidesPersistenceCause(t *testing.T) {
	w := respond(Persistence("commit", errors.New("password=hunter2")))
	assert.NotContains(t, w.Body.String(), "hunter2")
}
