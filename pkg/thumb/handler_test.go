package thumb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynhanx03/go-thumb/pkg/common/http/response"
	"github.com/huynhanx03/go-thumb/pkg/constraints"
)

func newTestRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	r := gin.New()
	NewHandler(f.svc).Register(r)
	return r, f
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, r http.Handler, method, target, body, user string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(constraints.HeaderUserID, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestHandler_RequiresUser(t *testing.T) {
	r, f := newTestRouter(t)

	for _, user := range []string{"", "abc", "0", "-3"} {
		status, env := serve(t, r, http.MethodPost, "/thumb/do", `{"blogId":42}`, user)
		assert.Equal(t, http.StatusUnauthorized, status, "user %q", user)
		assert.Equal(t, response.CodeUnauthorized, env.Code)
	}
	assert.Empty(t, f.mr.Keys())
}

func TestHandler_ToggleFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	status, env := serve(t, r, http.MethodPost, "/thumb/do", `{"blogId":42}`, "7")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, response.CodeSuccess, env.Code)
	assert.JSONEq(t, `true`, string(env.Data))

	status, env = serve(t, r, http.MethodGet, "/thumb/has?blogId=42", "", "7")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `true`, string(env.Data))

	status, env = serve(t, r, http.MethodPost, "/thumb/do", `{"blogId":42}`, "7")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeAlreadyLiked, env.Code)

	status, _ = serve(t, r, http.MethodPost, "/thumb/undo", `{"blogId":42}`, "7")
	require.Equal(t, http.StatusOK, status)

	status, env = serve(t, r, http.MethodPost, "/thumb/undo", `{"blogId":42}`, "7")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeNotLiked, env.Code)

	status, env = serve(t, r, http.MethodGet, "/thumb/has?blogId=42", "", "7")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `false`, string(env.Data))
}

func TestHandler_BadInput(t *testing.T) {
	r, _ := newTestRouter(t)

	status, env := serve(t, r, http.MethodPost, "/thumb/do", `{"blogId":"x"}`, "7")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, response.CodeParamInvalid, env.Code)

	status, env = serve(t, r, http.MethodPost, "/thumb/do", `{}`, "7")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeMissingItemID, env.Code)
}

func TestHandler_Hot(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, user := range []string{"1", "2"} {
		status, _ := serve(t, r, http.MethodPost, "/thumb/do", `{"blogId":42}`, user)
		require.Equal(t, http.StatusOK, status)
	}

	status, env := serve(t, r, http.MethodGet, "/thumb/hot", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"blogId":42,"count":2}]`, string(env.Data))
}
