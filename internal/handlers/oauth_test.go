package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/diskrelay/diskrelay/internal/diskauth"
)

type fakeCompleter struct {
	completeErr error
	abortErr    error
	completed   []string
	aborted     []string
}

func (f *fakeCompleter) CompleteHandshake(_ context.Context, state, code string) error {
	f.completed = append(f.completed, state+"|"+code)
	return f.completeErr
}

func (f *fakeCompleter) AbortHandshake(_ context.Context, state string) error {
	f.aborted = append(f.aborted, state)
	return f.abortErr
}

func newCallbackServer(completer *fakeCompleter) *echo.Echo {
	e := echo.New()
	NewOAuthHandler(slog.Default(), completer).Register(e)
	return e
}

func TestOAuthCallbackSuccess(t *testing.T) {
	completer := &fakeCompleter{}
	e := newCallbackServer(completer)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, OAuthCallbackPath+"?state=st&code=c0de", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access granted")
	assert.Equal(t, []string{"st|c0de"}, completer.completed)
}

func TestOAuthCallbackDeclined(t *testing.T) {
	completer := &fakeCompleter{}
	e := newCallbackServer(completer)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		OAuthCallbackPath+"?state=st&error=access_denied&error_description=denied", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access declined")
	assert.Equal(t, []string{"st"}, completer.aborted)
	assert.Empty(t, completer.completed)
}

func TestOAuthCallbackFailuresAreIndistinguishable(t *testing.T) {
	cases := []struct {
		name        string
		query       string
		completeErr error
		abortErr    error
	}{
		{name: "tampered state", query: "state=bad&code=c0de", completeErr: diskauth.ErrInvalidState},
		{name: "stale insert token", query: "state=st&code=c0de", completeErr: diskauth.ErrInvalidInsertToken},
		{name: "expired insert token", query: "state=st&code=c0de", completeErr: diskauth.ErrExpiredInsertToken},
		{name: "exchange rejected", query: "state=st&code=c0de", completeErr: &diskauth.ExchangeError{Code: "invalid_grant"}},
		{name: "abort with bad state", query: "state=bad&error=access_denied", abortErr: diskauth.ErrInvalidState},
		{name: "missing code and error", query: "state=st"},
	}

	var bodies []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			completer := &fakeCompleter{completeErr: tc.completeErr, abortErr: tc.abortErr}
			e := echo.New()
			NewOAuthHandler(slog.Default(), completer).Register(e)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, OAuthCallbackPath+"?"+tc.query, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			bodies = append(bodies, rec.Body.String())
		})
	}

	// Every failure renders the identical page.
	for i := 1; i < len(bodies); i++ {
		assert.Equal(t, bodies[0], bodies[i])
	}
}
