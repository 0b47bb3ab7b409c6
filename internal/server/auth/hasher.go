package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password, in characters.
const MinPasswordLength = 5

const argon2SaltLen = 16

// Error messages shared with the account service.
const (
	MsgPasswordTooShort = "The password needs to be at least 5 characters long."
	MsgPasswordTooLong  = "The password must be at most 72 bytes long."
)

// Hasher derives and checks salted one-way password hashes.
type Hasher interface {
	// Hash returns a salted hash of raw. Passwords shorter than
	// MinPasswordLength are rejected with common.ErrorValidation.
	Hash(raw string) (string, error)

	// Verify reports whether raw matches stored. A malformed stored
	// value is simply a mismatch.
	Verify(raw, stored string) bool
}

// NewHasher returns the hasher for algorithm ("bcrypt" or "argon2id").
// cost only applies to bcrypt.
func NewHasher(algorithm string, cost int) (Hasher, error) {
	switch algorithm {
	case "", "bcrypt":
		return NewBcryptHasher(cost), nil
	case "argon2id":
		return NewArgon2idHasher(cryptox.DefaultArgon2Params), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
}

func checkLength(raw string) error {
	if utf8.RuneCountInString(raw) < MinPasswordLength {
		return common.NewUserError(common.ErrorValidation, MsgPasswordTooShort)
	}
	return nil
}

// BcryptHasher hashes with bcrypt. The salt is embedded in the output.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher clamps cost into bcrypt's accepted range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(raw string) (string, error) {
	if err := checkLength(raw); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", common.NewUserError(common.ErrorValidation, MsgPasswordTooLong)
	}
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}

	return string(hash), nil
}

func (h *BcryptHasher) Verify(raw, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(raw)) == nil
}

// Argon2idHasher produces PHC strings:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
//
// Verification reads the parameters back from the stored string, so
// changing the defaults does not invalidate existing hashes.
type Argon2idHasher struct {
	params cryptox.Argon2Params
}

func NewArgon2idHasher(params cryptox.Argon2Params) *Argon2idHasher {
	return &Argon2idHasher{params: params}
}

func (h *Argon2idHasher) Hash(raw string) (string, error) {
	if err := checkLength(raw); err != nil {
		return "", err
	}

	salt, err := cryptox.RandomBytes(argon2SaltLen)
	if err != nil {
		return "", err
	}

	key := cryptox.DeriveKey([]byte(raw), salt, h.params)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2idHasher) Verify(raw, stored string) bool {
	params, salt, key, ok := parsePHC(stored)
	if !ok {
		return false
	}
	return cryptox.Equal(cryptox.DeriveKey([]byte(raw), salt, params), key)
}

func parsePHC(s string) (cryptox.Argon2Params, []byte, []byte, bool) {
	var p cryptox.Argon2Params

	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return p, nil, nil, false
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &threads); err != nil {
		return p, nil, nil, false
	}
	if threads == 0 || threads > 255 || p.Time == 0 || p.Memory == 0 || p.Memory > 1<<22 {
		return p, nil, nil, false
	}
	p.Threads = uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, false
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > 1024 {
		return p, nil, nil, false
	}
	p.KeyLen = uint32(len(key))

	return p, salt, key, true
}
