// Package services contains application services for the gophauth client.
// SessionService keeps the token of the logged-in account and runs the
// account operations of the CLI against the API.
package services

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/client/api"
	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/dmitrijs2005/gophauth/internal/netx"
)

// MaxAvatarSize bounds avatar uploads.
const MaxAvatarSize = 2 << 20

var ErrNotLoggedIn = errors.New("not logged in")

// API is the subset of *api.Client the session needs.
type API interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.Profile, error)
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Profile(ctx context.Context, token string) (*api.Profile, error)
	Update(ctx context.Context, token string, update api.ProfileUpdate) (*api.Profile, error)
	TokenIsValid(ctx context.Context, token string) (bool, error)
	Delete(ctx context.Context, token string) (*api.Profile, error)
	AvatarUploadURL(ctx context.Context, token string) (*api.AvatarUpload, error)
	AvatarURL(ctx context.Context, token string) (string, error)
	Health(ctx context.Context) error
}

// uploadFn is a test seam for the presigned PUT.
var uploadFn = netx.UploadToPresignedURL

// SessionService is safe for concurrent use.
type SessionService struct {
	api        API
	httpClient *http.Client

	mu      sync.RWMutex
	token   string
	profile *api.Profile
}

// NewSessionService binds a session to an API. httpClient is used for
// avatar uploads and may be nil.
func NewSessionService(a API, httpClient *http.Client) *SessionService {
	return &SessionService{api: a, httpClient: httpClient}
}

func (s *SessionService) set(token string, p *api.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.profile = p
}

func (s *SessionService) current() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNotLoggedIn
	}
	return s.token, nil
}

// LoggedIn reports whether a token is held.
func (s *SessionService) LoggedIn() bool {
	_, err := s.current()
	return err == nil
}

// DisplayName of the logged-in account, or "".
func (s *SessionService) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return ""
	}
	return s.profile.DisplayName
}

// forget drops the session when the server no longer accepts the token.
func (s *SessionService) forget(err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		s.Logout()
	}
	return err
}

// Register creates an account. It does not log in.
func (s *SessionService) Register(ctx context.Context, email string, password, passwordCheck []byte, displayName string) (*api.Profile, error) {
	return s.api.Register(ctx, api.RegisterRequest{
		Email:         email,
		Password:      string(password),
		PasswordCheck: string(passwordCheck),
		DisplayName:   displayName,
	})
}

// Login authenticates and keeps the token for later calls.
func (s *SessionService) Login(ctx context.Context, email string, password []byte) (*api.Profile, error) {
	res, err := s.api.Login(ctx, email, string(password))
	if err != nil {
		return nil, err
	}

	profile := res.User
	s.set(res.Token, &profile)
	return &profile, nil
}

func (s *SessionService) Logout() {
	s.set("", nil)
}

// WhoAmI fetches the current profile from the server.
func (s *SessionService) WhoAmI(ctx context.Context) (*api.Profile, error) {
	token, err := s.current()
	if err != nil {
		return nil, err
	}

	p, err := s.api.Profile(ctx, token)
	if errors.Is(err, api.ErrNotFound) {
		// the account was deleted elsewhere
		s.Logout()
		return nil, err
	}
	if err != nil {
		return nil, s.forget(err)
	}

	s.set(token, p)
	return p, nil
}

// Check asks the server whether the held token is still valid. An invalid
// token ends the session.
func (s *SessionService) Check(ctx context.Context) (bool, error) {
	token, err := s.current()
	if err != nil {
		return false, nil
	}

	valid, err := s.api.TokenIsValid(ctx, token)
	if err != nil {
		return false, err
	}
	if !valid {
		s.Logout()
	}
	return valid, nil
}

// Update changes the non-nil fields of the caller's profile.
func (s *SessionService) Update(ctx context.Context, displayName, bio *string) (*api.Profile, error) {
	return s.update(ctx, api.ProfileUpdate{DisplayName: displayName, Bio: bio})
}

func (s *SessionService) update(ctx context.Context, u api.ProfileUpdate) (*api.Profile, error) {
	token, err := s.current()
	if err != nil {
		return nil, err
	}

	p, err := s.api.Update(ctx, token, u)
	if err != nil {
		return nil, s.forget(err)
	}

	s.set(token, p)
	return p, nil
}

// Delete removes the account and ends the session.
func (s *SessionService) Delete(ctx context.Context) (*api.Profile, error) {
	token, err := s.current()
	if err != nil {
		return nil, err
	}

	p, err := s.api.Delete(ctx, token)
	if err != nil {
		return nil, s.forget(err)
	}

	s.Logout()
	return p, nil
}

// UploadAvatar sends the file at path to storage and stores its key as the
// profile avatar.
func (s *SessionService) UploadAvatar(ctx context.Context, path string) (*api.Profile, error) {
	token, err := s.current()
	if err != nil {
		return nil, err
	}

	data, err := filex.ReadLimited(path, MaxAvatarSize)
	if err != nil {
		return nil, err
	}

	upload, err := s.api.AvatarUploadURL(ctx, token)
	if err != nil {
		return nil, s.forget(err)
	}

	if err := uploadFn(ctx, s.httpClient, upload.URL, http.DetectContentType(data), data); err != nil {
		return nil, err
	}

	return s.update(ctx, api.ProfileUpdate{Avatar: &upload.Key})
}

// AvatarURL returns a link to the current avatar.
func (s *SessionService) AvatarURL(ctx context.Context) (string, error) {
	token, err := s.current()
	if err != nil {
		return "", err
	}

	url, err := s.api.AvatarURL(ctx, token)
	if err != nil {
		return "", s.forget(err)
	}
	return url, nil
}

// Ping reports whether the server is reachable and healthy.
func (s *SessionService) Ping(ctx context.Context) error {
	return s.api.Health(ctx)
}
