package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/api"
	"github.com/dmitrijs2005/gophauth/internal/client/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	loggedIn bool
	name     string

	regEmail  string
	regName   string
	regPass   []byte
	regCheck  []byte
	loginPass []byte
	updName   *string
	updBio    *string
	uploaded  string
	deleted   bool
	valid     bool
	err       error
	down      atomic.Bool
}

func (f *fakeSession) LoggedIn() bool      { return f.loggedIn }
func (f *fakeSession) DisplayName() string { return f.name }

func (f *fakeSession) Register(_ context.Context, email string, password, check []byte, name string) (*api.Profile, error) {
	f.regEmail, f.regName = email, name
	f.regPass, f.regCheck = password, check
	if f.err != nil {
		return nil, f.err
	}
	return &api.Profile{ID: "1", Email: email, DisplayName: name}, nil
}

func (f *fakeSession) Login(_ context.Context, email string, password []byte) (*api.Profile, error) {
	f.loginPass = password
	if f.err != nil {
		return nil, f.err
	}
	f.loggedIn, f.name = true, "Ann"
	return &api.Profile{ID: "1", DisplayName: "Ann"}, nil
}

func (f *fakeSession) Logout() { f.loggedIn, f.name = false, "" }

func (f *fakeSession) WhoAmI(context.Context) (*api.Profile, error) {
	if !f.loggedIn {
		return nil, services.ErrNotLoggedIn
	}
	return &api.Profile{ID: "1", DisplayName: f.name}, f.err
}

func (f *fakeSession) Check(context.Context) (bool, error) { return f.valid, f.err }

func (f *fakeSession) Update(_ context.Context, name, bio *string) (*api.Profile, error) {
	f.updName, f.updBio = name, bio
	return &api.Profile{ID: "1"}, f.err
}

func (f *fakeSession) Delete(context.Context) (*api.Profile, error) {
	f.deleted = true
	return &api.Profile{ID: "1", Email: "a@x.com"}, f.err
}

func (f *fakeSession) UploadAvatar(_ context.Context, path string) (*api.Profile, error) {
	f.uploaded = path
	return &api.Profile{ID: "1", Avatar: "avatars/1/k"}, f.err
}

func (f *fakeSession) AvatarURL(context.Context) (string, error) { return "http://s3/get", f.err }

func (f *fakeSession) Ping(context.Context) error {
	if f.down.Load() {
		return api.ErrUnavailable
	}
	return nil
}

// stubInputs answers text prompts from texts and password prompts from
// passwords, in order.
func stubInputs(t *testing.T, texts []string, passwords ...string) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if len(texts) == 0 {
			return "", io.EOF
		}
		s := texts[0]
		texts = texts[1:]
		return s, nil
	}
	getPassword = func(_ io.Writer, _ string) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, io.EOF
		}
		p := []byte(passwords[0])
		passwords = passwords[1:]
		return p, nil
	}
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

func newTestApp(s *fakeSession) *App {
	return &App{session: s, reader: bufio.NewReader(strings.NewReader("")), out: io.Discard}
}

func TestApp_RegisterWipesPasswords(t *testing.T) {
	capturePrint(t)
	stubInputs(t, []string{"a@x.com", "Ann"}, "secret", "secret")

	s := &fakeSession{}
	require.NoError(t, newTestApp(s).Register(context.Background()))

	assert.Equal(t, "a@x.com", s.regEmail)
	assert.Equal(t, "Ann", s.regName)
	assert.Equal(t, make([]byte, 6), s.regPass)
	assert.Equal(t, make([]byte, 6), s.regCheck)
}

func TestApp_LoginSetsMode(t *testing.T) {
	lines := capturePrint(t)
	stubInputs(t, []string{"a@x.com"}, "secret")

	s := &fakeSession{}
	a := newTestApp(s)
	require.NoError(t, a.Login(context.Background()))

	assert.True(t, a.isLoggedIn())
	assert.Equal(t, ModeOnline, a.getMode())
	assert.Equal(t, "(Ann online)", a.getStatus())
	assert.Contains(t, *lines, "Welcome, Ann!")
	assert.Equal(t, make([]byte, 6), s.loginPass)
}

func TestApp_LoginUnavailable(t *testing.T) {
	capturePrint(t)
	stubInputs(t, []string{"a@x.com"}, "secret")

	s := &fakeSession{err: &api.APIError{Status: http.StatusServiceUnavailable}}
	a := newTestApp(s)
	err := a.Login(context.Background())

	require.ErrorIs(t, err, api.ErrUnavailable)
	assert.Equal(t, ModeOffline, a.getMode())
	assert.Equal(t, "(offline)", a.getStatus())
}

func TestApp_UpdateKeepsEmptyAnswers(t *testing.T) {
	capturePrint(t)
	stubInputs(t, []string{"", "new bio"})

	s := &fakeSession{loggedIn: true}
	require.NoError(t, newTestApp(s).Update(context.Background()))

	assert.Nil(t, s.updName)
	require.NotNil(t, s.updBio)
	assert.Equal(t, "new bio", *s.updBio)
}

func TestApp_UpdateNothing(t *testing.T) {
	lines := capturePrint(t)
	stubInputs(t, []string{"", ""})

	s := &fakeSession{loggedIn: true}
	require.NoError(t, newTestApp(s).Update(context.Background()))
	assert.Contains(t, *lines, "Nothing to update.")
	assert.Nil(t, s.updBio)
}

func TestApp_RequiresLogin(t *testing.T) {
	capturePrint(t)
	a := newTestApp(&fakeSession{})

	assert.ErrorIs(t, a.Update(context.Background()), services.ErrNotLoggedIn)
	assert.ErrorIs(t, a.Delete(context.Background()), services.ErrNotLoggedIn)
	assert.ErrorIs(t, a.WhoAmI(context.Background()), services.ErrNotLoggedIn)
}

func TestApp_DeleteNeedsConfirmation(t *testing.T) {
	lines := capturePrint(t)

	stubInputs(t, []string{"no"})
	s := &fakeSession{loggedIn: true}
	require.NoError(t, newTestApp(s).Delete(context.Background()))
	assert.False(t, s.deleted)
	assert.Contains(t, *lines, "Cancelled.")

	stubInputs(t, []string{"YES"})
	require.NoError(t, newTestApp(s).Delete(context.Background()))
	assert.True(t, s.deleted)
	assert.Contains(t, *lines, "Account a@x.com deleted.")
}

func TestApp_Avatar(t *testing.T) {
	lines := capturePrint(t)
	s := &fakeSession{loggedIn: true}
	a := newTestApp(s)

	require.NoError(t, a.Avatar(context.Background(), nil))
	assert.Contains(t, *lines, "http://s3/get")

	require.NoError(t, a.Avatar(context.Background(), []string{"me.png"}))
	assert.Equal(t, "me.png", s.uploaded)
	assert.Contains(t, *lines, "Avatar updated: avatars/1/k")
}

func TestApp_Check(t *testing.T) {
	lines := capturePrint(t)

	require.NoError(t, newTestApp(&fakeSession{}).Check(context.Background()))
	assert.Contains(t, *lines, "No token held, login first.")

	require.NoError(t, newTestApp(&fakeSession{loggedIn: true, valid: true}).Check(context.Background()))
	assert.Contains(t, *lines, "Token is valid.")

	require.NoError(t, newTestApp(&fakeSession{loggedIn: true}).Check(context.Background()))
	assert.Contains(t, *lines, "Token is no longer valid, please login again.")
}

func TestApp_Logout(t *testing.T) {
	capturePrint(t)
	s := &fakeSession{loggedIn: true, name: "Ann"}
	a := newTestApp(s)

	require.NoError(t, a.Logout(context.Background()))
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, "", a.getStatus())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "you are not logged in", describe(services.ErrNotLoggedIn))
	assert.Equal(t, "Invalid credentials.", describe(&api.APIError{Status: 400, Message: "Invalid credentials."}))
	assert.Equal(t, "server unavailable, try again later", describe(api.ErrUnavailable))
	assert.Equal(t, "boom", describe(errors.New("boom")))
}

func TestStartOnlineStatusWatcher(t *testing.T) {
	capturePrint(t)
	s := &fakeSession{}
	s.down.Store(true)
	a := newTestApp(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.StartOnlineStatusWatcher(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return a.getMode() == ModeOffline }, time.Second, time.Millisecond)

	s.down.Store(false)
	require.Eventually(t, func() bool { return a.getMode() == ModeOnline }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
