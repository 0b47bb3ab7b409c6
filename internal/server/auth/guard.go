package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// Messages returned to callers rejected by the guard.
const (
	MsgNoToken      = "No authentication token, access denied."
	MsgInvalidToken = "Token verification failed, authorization denied."
)

// TokenVerifier is satisfied by *TokenService.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Guard decides whether a request carrying a token may proceed. It only
// checks the token; whether the account still exists is up to the handler.
type Guard struct {
	tokens TokenVerifier
}

func NewGuard(tokens TokenVerifier) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate returns the account id the token was issued for, or a
// common.ErrorUnauthorized user error.
func (g *Guard) Authenticate(token string) (string, error) {
	if token == "" {
		return "", common.NewUserError(common.ErrorUnauthorized, MsgNoToken)
	}

	id, err := g.tokens.Verify(token)
	if err != nil {
		return "", common.NewUserError(common.ErrorUnauthorized, MsgInvalidToken)
	}

	return id, nil
}

type ctxKey struct{}

// WithAccountID stores the authenticated account id in ctx.
func WithAccountID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// AccountIDFromContext returns the id stored by WithAccountID.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// RequireAuth wraps next so that it only runs for requests with a valid
// token in the common.TokenHeaderName header. Rejected requests get 401
// with a {"msg": ...} body.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Authenticate(r.Header.Get(common.TokenHeaderName))
		if err != nil {
			msg, _ := common.UserMessage(err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"msg": msg})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), id)))
	})
}
