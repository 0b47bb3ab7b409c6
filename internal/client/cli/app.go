package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/api"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/client/services"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// session is the part of *services.SessionService the commands use.
type session interface {
	LoggedIn() bool
	DisplayName() string
	Register(ctx context.Context, email string, password, passwordCheck []byte, displayName string) (*api.Profile, error)
	Login(ctx context.Context, email string, password []byte) (*api.Profile, error)
	Logout()
	WhoAmI(ctx context.Context) (*api.Profile, error)
	Check(ctx context.Context) (bool, error)
	Update(ctx context.Context, displayName, bio *string) (*api.Profile, error)
	Delete(ctx context.Context) (*api.Profile, error)
	UploadAvatar(ctx context.Context, path string) (*api.Profile, error)
	AvatarURL(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
}

type App struct {
	config  *config.Config
	session session
	reader  *bufio.Reader
	out     io.Writer

	mu   sync.RWMutex
	mode Mode
}

func NewApp(c *config.Config) *App {
	client := api.NewClient(c.ServerURL, c.RequestTimeout)
	s := services.NewSessionService(client, client.HTTPClient())

	return &App{config: c, session: s, reader: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		printlnFn("Server is", mode)
	}
}

func (a *App) getMode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

func (a *App) isLoggedIn() bool {
	return a.session.LoggedIn()
}

// getStatus renders the prompt suffix, e.g. "(Ann online)".
func (a *App) getStatus() string {
	s := a.session.DisplayName()
	if m := a.getMode(); m != "" {
		if s != "" {
			s += " "
		}
		s += string(m)
	}
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}

// Run starts the status watcher and the REPL; it returns when the user
// exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printlnFn("Welcome to gophauth CLI (type 'help' for commands)")

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
}

// StartOnlineStatusWatcher probes the server every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	a.probe(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.session.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}
