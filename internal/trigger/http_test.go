package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/hotel-call-scheduler/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(t *testing.T, h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestTriggerHTTP_Unauthorized(t *testing.T) {
	rec := &recorder{}
	h := NewRouter(newRunner(rec, &wakeRecorder{}, nil), auth.NewChecker("tok", "", ""), nil, zap.NewNop())

	w := serve(t, h, http.MethodPost, "/api/trigger/process", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = serve(t, h, http.MethodPost, "/api/trigger/process", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, rec.ops)
}

func TestTriggerHTTP_Process(t *testing.T) {
	rec := &recorder{}
	h := NewRouter(newRunner(rec, &wakeRecorder{}, nil), auth.NewChecker("tok", "", ""), nil, zap.NewNop())

	w := serve(t, h, http.MethodPost, "/api/trigger/process?call_type=pre-arrival", "tok")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-Id"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "process", body["operation"])
	assert.Equal(t, "pre_arrival", body["call_type"])
	assert.Contains(t, body, "timestamp")
	assert.Contains(t, body, "dispatch")
	assert.Equal(t, []string{"process:pre_arrival"}, rec.ops)

	w = serve(t, h, http.MethodGet, "/api/trigger/wakeup", "tok")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTriggerHTTP_Errors(t *testing.T) {
	rec := &recorder{dispatchErr: errors.New("select due calls: db down")}
	h := NewRouter(newRunner(rec, &wakeRecorder{}, nil), auth.NewChecker("tok", "", ""), nil, zap.NewNop())

	w := serve(t, h, http.MethodPost, "/api/trigger/teleport", "tok")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, h, http.MethodPost, "/api/trigger/process", "tok")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var sum Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, "process", sum.Operation)
	assert.Contains(t, sum.Error, "db down")
}

func TestHealthz(t *testing.T) {
	checker := auth.NewChecker("tok", "", "")
	h := NewRouter(newRunner(&recorder{}, &wakeRecorder{}, nil), checker, nil, zap.NewNop())
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodGet, "/healthz", "").Code)

	down := func(context.Context) error { return errors.New("pool closed") }
	h = NewRouter(newRunner(&recorder{}, &wakeRecorder{}, nil), checker, down, zap.NewNop())
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, http.MethodGet, "/healthz", "").Code)
}
