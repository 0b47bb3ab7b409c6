package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokens(t *testing.T, secret string, ttl time.Duration) *TokenService {
	t.Helper()
	s, err := NewTokenService([]byte(secret), ttl)
	require.NoError(t, err)
	return s
}

func TestNewTokenService_Validation(t *testing.T) {
	_, err := NewTokenService(nil, 0)
	assert.Error(t, err)

	_, err = NewTokenService([]byte("k"), -time.Second)
	assert.Error(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTokens(t, "super-secret", time.Hour)

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("account-%d", i)
		tok, err := s.Issue(id)
		require.NoError(t, err)

		got, err := s.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestIssue_EmptyID(t *testing.T) {
	s := newTokens(t, "k", 0)
	_, err := s.Issue("")
	assert.Error(t, err)
}

func TestIssue_NoExpiryWhenTTLZero(t *testing.T) {
	s := newTokens(t, "k", 0)
	tok, err := s.Issue("u1")
	require.NoError(t, err)

	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "u1", claims.AccountID)
	assert.NotNil(t, claims.IssuedAt)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	s := newTokens(t, "secret", time.Minute)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }

	tok, err := s.Issue("u1")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := newTokens(t, "right-secret", time.Hour).Issue("u2")
	require.NoError(t, err)

	_, err = newTokens(t, "wrong-secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	s := newTokens(t, "k", 0)
	for _, tok := range []string{"", "not.a.jwt", "abc", "..", "a.b.c.d", strings.Repeat("x", 4096)} {
		assert.NotPanics(t, func() {
			_, err := s.Verify(tok)
			assert.ErrorIs(t, err, common.ErrInvalidToken, "token %q", tok)
		})
	}
}

func TestVerify_SignatureBitFlips(t *testing.T) {
	t.Parallel()

	s := newTokens(t, "flip-secret", time.Hour)
	tok, err := s.Issue("victim")
	require.NoError(t, err)

	dot := strings.LastIndex(tok, ".")
	sig, err := base64.RawURLEncoding.DecodeString(tok[dot+1:])
	require.NoError(t, err)

	for i := range sig {
		for bit := 0; bit < 8; bit++ {
			mutated := make([]byte, len(sig))
			copy(mutated, sig)
			mutated[i] ^= 1 << bit

			forged := tok[:dot+1] + base64.RawURLEncoding.EncodeToString(mutated)
			_, err := s.Verify(forged)
			require.ErrorIs(t, err, common.ErrInvalidToken, "byte %d bit %d", i, bit)
		}
	}
}

func TestVerify_SignatureTextBitFlips(t *testing.T) {
	t.Parallel()

	s := newTokens(t, "flip-secret", time.Hour)
	tok, err := s.Issue("victim")
	require.NoError(t, err)

	dot := strings.LastIndex(tok, ".")
	for pos := dot + 1; pos < len(tok); pos++ {
		for bit := 0; bit < 8; bit++ {
			b := []byte(tok)
			b[pos] ^= 1 << bit

			_, err := s.Verify(string(b))
			require.ErrorIs(t, err, common.ErrInvalidToken, "pos %d bit %d", pos, bit)
		}
	}
}

func TestVerify_PayloadTampered(t *testing.T) {
	s := newTokens(t, "k", time.Hour)
	tok, err := s.Issue("alice")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"mallory","id":"mallory"}`))
	forged := parts[0] + "." + payload + "." + parts[2]

	_, err = s.Verify(forged)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	s := newTokens(t, "k", time.Hour)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}, AccountID: "u1"}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Verify(none)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = s.Verify(hs512)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_LegacyIDClaimOnly(t *testing.T) {
	s := newTokens(t, "k", 0)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{AccountID: "legacy"}).SignedString([]byte("k"))
	require.NoError(t, err)

	got, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "legacy", got)
}

func TestVerify_NoSubject(t *testing.T) {
	s := newTokens(t, "k", 0)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
