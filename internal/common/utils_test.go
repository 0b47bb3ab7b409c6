package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	require.NoError(t, err)
	assert.Len(t, s, n*2)
	_, err = hex.DecodeString(s)
	assert.NoError(t, err)
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte("secret")
	WipeByteArray(buf)
	assert.Equal(t, make([]byte, 6), buf)

	WipeByteArray(nil)
}

func TestUserError_MatchesKind(t *testing.T) {
	err := fmt.Errorf("register: %w", NewUserError(ErrorConflict, "taken"))

	assert.True(t, errors.Is(err, ErrorConflict))
	assert.False(t, errors.Is(err, ErrorValidation))

	msg, ok := UserMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "taken", msg)

	_, ok = UserMessage(errors.New("plain"))
	assert.False(t, ok)
}
