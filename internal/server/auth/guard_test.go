package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Authenticate(t *testing.T) {
	tokens := newTokens(t, "guard-secret", time.Hour)
	g := NewGuard(tokens)

	good, err := tokens.Issue("acc-1")
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantID  string
		wantMsg string
	}{
		{name: "valid", token: good, wantID: "acc-1"},
		{name: "empty", token: "", wantMsg: MsgNoToken},
		{name: "garbage", token: "garbage", wantMsg: MsgInvalidToken},
		{name: "foreign", token: mustIssue(t, "other-secret", "acc-1"), wantMsg: MsgInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := g.Authenticate(tt.token)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, id)
				return
			}

			require.ErrorIs(t, err, common.ErrorUnauthorized)
			msg, ok := common.UserMessage(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, msg)
			assert.Empty(t, id)
		})
	}
}

func mustIssue(t *testing.T, secret, id string) string {
	t.Helper()
	tok, err := newTokens(t, secret, time.Hour).Issue(id)
	require.NoError(t, err)
	return tok
}

func TestAccountIDContext(t *testing.T) {
	_, ok := AccountIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithAccountID(context.Background(), "acc-9")
	id, ok := AccountIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "acc-9", id)

	// A foreign key type holding the same value must not be picked up.
	type otherKey struct{}
	ctx = context.WithValue(context.Background(), otherKey{}, "acc-9")
	_, ok = AccountIDFromContext(ctx)
	assert.False(t, ok)
}

func TestGuard_RequireAuth(t *testing.T) {
	tokens := newTokens(t, "mw-secret", time.Hour)
	g := NewGuard(tokens)

	var seen string
	h := g.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AccountIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("no token", func(t *testing.T) {
		seen = ""
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, MsgNoToken, body["msg"])
		assert.Empty(t, seen, "handler must not run")
	})

	t.Run("bad token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(common.TokenHeaderName, "nope")
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, MsgInvalidToken, body["msg"])
	})

	t.Run("valid token", func(t *testing.T) {
		tok, err := tokens.Issue("acc-2")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(common.TokenHeaderName, tok)
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "acc-2", seen)
	})
}
