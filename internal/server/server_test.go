package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemrelay/gemrelay/internal/session"
)

func TestPing(t *testing.T) {
	t.Parallel()

	s := New(":0", session.NewStore(5))
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestStatusReportsSessionCount(t *testing.T) {
	t.Parallel()

	sessions := session.NewStore(5)
	sessions.AppendTurn("u1", session.RoleUser, "hi")
	sessions.AppendTurn("u2", session.RoleUser, "hi")

	s := New(":0", sessions)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Sessions)
}
