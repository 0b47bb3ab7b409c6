// Package services contains server-side business logic. AccountService
// implements registration, login, token checks and profile management on
// top of an accounts.Repository.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
)

// User-facing messages.
const (
	MsgMissingFields      = "Not all fields have been entered."
	MsgPasswordMismatch   = "The passwords entered do not match."
	MsgEmailTaken         = "Account with this email already registered."
	MsgInvalidCredentials = "Invalid credentials."
	MsgAccountNotFound    = "Account not found."
	MsgForeignProfile     = "You can only update your own profile."
)

// DefaultRepositoryTimeout bounds a single repository call when the
// configured timeout is not positive.
const DefaultRepositoryTimeout = 5 * time.Second

// dummyPassword is hashed once and verified against on logins for unknown
// emails, so those take about as long as a wrong password.
const dummyPassword = "gophauth-timing-equalizer"

// TokenIssuer is satisfied by *auth.TokenService.
type TokenIssuer interface {
	Issue(accountID string) (string, error)
	Verify(token string) (string, error)
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email         string
	Password      string
	PasswordCheck string
	DisplayName   string
	Bio           string
	Avatar        string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token   string
	Account *models.Account
}

// AccountService is safe for concurrent use.
type AccountService struct {
	repo    accounts.Repository
	hasher  auth.Hasher
	tokens  TokenIssuer
	timeout time.Duration
	logger  logging.Logger
	metrics *metrics.Metrics

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService wires the service. logger and m may be nil.
func NewAccountService(repo accounts.Repository, hasher auth.Hasher, tokens TokenIssuer,
	timeout time.Duration, logger logging.Logger, m *metrics.Metrics) *AccountService {
	if timeout <= 0 {
		timeout = DefaultRepositoryTimeout
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &AccountService{
		repo:    repo,
		hasher:  hasher,
		tokens:  tokens,
		timeout: timeout,
		logger:  logger.With("module", "accounts"),
		metrics: m,
	}
}

// NormalizeEmail trims and lower-cases an email so lookups and the
// uniqueness check are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates in, hashes the password and stores a new account.
// Checks run in order: required fields, password length, password match,
// email availability.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	email := NormalizeEmail(in.Email)

	if email == "" || in.Password == "" || in.PasswordCheck == "" {
		s.metrics.AuthEvent("register", metrics.ResultRejected)
		return nil, common.NewUserError(common.ErrorValidation, MsgMissingFields)
	}
	if utf8.RuneCountInString(in.Password) < auth.MinPasswordLength {
		s.metrics.AuthEvent("register", metrics.ResultRejected)
		return nil, common.NewUserError(common.ErrorValidation, auth.MsgPasswordTooShort)
	}
	if in.Password != in.PasswordCheck {
		s.metrics.AuthEvent("register", metrics.ResultRejected)
		return nil, common.NewUserError(common.ErrorValidation, MsgPasswordMismatch)
	}

	_, err := bounded(ctx, s, "find_by_email", func(ctx context.Context) (*models.Account, error) {
		return s.repo.FindByEmail(ctx, email)
	})
	switch {
	case err == nil:
		s.metrics.AuthEvent("register", metrics.ResultConflict)
		return nil, common.NewUserError(common.ErrorConflict, MsgEmailTaken)
	case !errors.Is(err, common.ErrorNotFound):
		s.metrics.AuthEvent("register", metrics.ResultUnavailable)
		return nil, err
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = email
	}
	bio := in.Bio
	if strings.TrimSpace(bio) == "" {
		bio = common.DefaultBio
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if _, ok := common.UserMessage(err); ok {
			s.metrics.AuthEvent("register", metrics.ResultRejected)
			return nil, err
		}
		s.metrics.AuthEvent("register", metrics.ResultError)
		return nil, fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}

	saved, err := bounded(ctx, s, "create", func(ctx context.Context) (*models.Account, error) {
		return s.repo.Create(ctx, &models.Account{
			Email:        email,
			PasswordHash: hash,
			DisplayName:  displayName,
			Bio:          bio,
			Avatar:       strings.TrimSpace(in.Avatar),
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			s.metrics.AuthEvent("register", metrics.ResultConflict)
			return nil, common.NewUserError(common.ErrorConflict, MsgEmailTaken)
		}
		s.metrics.AuthEvent("register", metrics.ResultUnavailable)
		return nil, err
	}

	s.metrics.AuthEvent("register", metrics.ResultSuccess)
	s.logger.Info(ctx, "account registered", "account_id", saved.ID)

	return saved, nil
}

// Login checks the credentials and issues a session token. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.AuthEvent("login", metrics.ResultRejected)
		return nil, common.NewUserError(common.ErrorValidation, MsgMissingFields)
	}

	account, err := bounded(ctx, s, "find_by_email", func(ctx context.Context) (*models.Account, error) {
		return s.repo.FindByEmail(ctx, email)
	})
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.metrics.AuthEvent("login", metrics.ResultUnavailable)
			return nil, err
		}
		s.hasher.Verify(password, s.dummy())
		s.metrics.AuthEvent("login", metrics.ResultRejected)
		return nil, common.NewUserError(common.ErrorValidation, MsgInvalidCredentials)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.metrics.AuthEvent("login", metrics.ResultRejected)
		s.logger.Info(ctx, "login rejected", "account_id", account.ID)
		return nil, common.NewUserError(common.ErrorValidation, MsgInvalidCredentials)
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		s.metrics.AuthEvent("login", metrics.ResultError)
		return nil, fmt.Errorf("%w: issue token: %v", common.ErrorInternal, err)
	}

	s.metrics.AuthEvent("login", metrics.ResultSuccess)
	s.logger.Info(ctx, "login succeeded", "account_id", account.ID)

	return &LoginResult{Token: token, Account: account}, nil
}

// Delete removes the account and returns it as it was.
func (s *AccountService) Delete(ctx context.Context, accountID string) (*models.Account, error) {
	deleted, err := bounded(ctx, s, "delete", func(ctx context.Context) (*models.Account, error) {
		return s.repo.DeleteByID(ctx, accountID)
	})
	if err != nil {
		s.metrics.AuthEvent("delete", failureResult(err))
		return nil, notFoundAsUserError(err)
	}

	s.metrics.AuthEvent("delete", metrics.ResultSuccess)
	s.logger.Info(ctx, "account deleted", "account_id", deleted.ID)

	return deleted, nil
}

// TokenIsValid reports whether token verifies and its account still exists.
// It only fails when the store cannot be reached.
func (s *AccountService) TokenIsValid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	id, err := s.tokens.Verify(token)
	if err != nil {
		return false, nil
	}

	_, err = bounded(ctx, s, "find_by_id", func(ctx context.Context) (*models.Account, error) {
		return s.repo.FindByID(ctx, id)
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, err
	}
}

// FetchProfile returns the account of an authenticated caller.
func (s *AccountService) FetchProfile(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.find(ctx, accountID)
	if err != nil {
		s.metrics.AuthEvent("profile", failureResult(err))
		return nil, err
	}
	s.metrics.AuthEvent("profile", metrics.ResultSuccess)
	return account, nil
}

// find loads an account without counting an auth event.
func (s *AccountService) find(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := bounded(ctx, s, "find_by_id", func(ctx context.Context) (*models.Account, error) {
		return s.repo.FindByID(ctx, accountID)
	})
	if err != nil {
		return nil, notFoundAsUserError(err)
	}
	return account, nil
}

// UpdateProfile overwrites the fields set in update. targetID may be empty
// or must equal callerID; callers cannot edit other accounts.
func (s *AccountService) UpdateProfile(ctx context.Context, callerID, targetID string, update models.ProfileUpdate) (*models.Account, error) {
	if targetID != "" && targetID != callerID {
		s.metrics.AuthEvent("update", metrics.ResultRejected)
		return nil, common.NewUserError(common.ErrorForbidden, MsgForeignProfile)
	}

	var (
		updated *models.Account
		err     error
	)
	if update.Empty() {
		updated, err = s.find(ctx, callerID)
	} else {
		updated, err = bounded(ctx, s, "update", func(ctx context.Context) (*models.Account, error) {
			return s.repo.Update(ctx, callerID, update)
		})
		err = notFoundAsUserError(err)
	}
	if err != nil {
		s.metrics.AuthEvent("update", failureResult(err))
		return nil, err
	}

	s.metrics.AuthEvent("update", metrics.ResultSuccess)

	return updated, nil
}

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Error(context.Background(), "cannot prepare dummy hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// failureResult classifies a failed account operation for AuthEvent.
func failureResult(err error) string {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return metrics.ResultRejected
	case errors.Is(err, common.ErrorUnavailable):
		return metrics.ResultUnavailable
	default:
		return metrics.ResultError
	}
}

func notFoundAsUserError(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.NewUserError(common.ErrorNotFound, MsgAccountNotFound)
	}
	return err
}

// bounded runs one repository call under the service timeout. The call
// is abandoned when the deadline passes even if the repository ignores ctx.
// NotFound and Conflict pass through; any other failure, a timeout
// included, becomes common.ErrorUnavailable.
func bounded[T any](ctx context.Context, s *AccountService, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	start := time.Now()
	go func() {
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		r.err = ctx.Err()
	}
	s.metrics.ObserveStoreCall(op, time.Since(start))

	if r.err == nil || errors.Is(r.err, common.ErrorNotFound) || errors.Is(r.err, common.ErrorConflict) {
		return r.v, r.err
	}

	s.logger.Error(ctx, "account store call failed", "operation", op, "error", r.err)

	var zero T
	return zero, fmt.Errorf("%w: %s: %v", common.ErrorUnavailable, op, r.err)
}
