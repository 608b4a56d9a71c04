package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jason-s-yu/yudh/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func httpGetJSON(t *testing.T, url string) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestEnsureGuestIssuesCookie(t *testing.T) {
	require.NoError(t, auth.Init(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()
	claims, err := EnsureGuest(w, req)
	require.NoError(t, err)
	assert.Equal(t, guestName, claims.Username)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, authCookie, cookies[0].Name)

	// The issued cookie identifies the same guest on the next request.
	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Cookie", authCookie+"="+cookies[0].Value)
	w = httptest.NewRecorder()
	again, err := EnsureGuest(w, req)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, again.UserID)
	assert.Empty(t, w.Result().Cookies())
}

func TestEnsureGuestReplacesInvalidToken(t *testing.T) {
	require.NoError(t, auth.Init(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Cookie", "theme=dark; "+authCookie+"=garbage")
	w := httptest.NewRecorder()
	_, err := EnsureGuest(w, req)
	require.NoError(t, err)
	assert.Len(t, w.Result().Cookies(), 1)
}

func TestAccountHandlersWithoutDatabase(t *testing.T) {
	handlers := map[string]http.HandlerFunc{
		"create": CreateUserHandler,
		"login":  LoginHandler,
		"claim":  ClaimGuestHandler,
	}
	body := []byte(`{"email":"a@b.c","password":"pw","username":"arjuna"}`)
	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/user/"+name, bytes.NewReader(body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		})
	}
}

func TestAccountHandlersRejectGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/user/login", nil)
	w := httptest.NewRecorder()
	LoginHandler(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestExtractCookieToken(t *testing.T) {
	assert.Equal(t, "xyz", extractCookieToken("a=1; auth_token=xyz; b=2", "auth_token"))
	assert.Equal(t, "", extractCookieToken("a=1", "auth_token"))
	assert.Equal(t, "", extractCookieToken("", "auth_token"))
}
