// Package api is a typed client for the gophauth HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/sethvargo/go-retry"
)

// Profile is the public view of an account.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"userBio"`
	Avatar      string `json:"avatar,omitempty"`
}

type RegisterRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	PasswordCheck string `json:"passwordCheck"`
	DisplayName   string `json:"displayName,omitempty"`
	Bio           string `json:"userBio,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
}

type LoginResponse struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// ProfileUpdate only sends the fields that are set.
type ProfileUpdate struct {
	ID          string  `json:"_id,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Bio         *string `json:"userBio,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
}

type AvatarUpload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Client talks to one gophauth server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	// newBackoff drives retries of idempotent requests on transport errors.
	newBackoff func() retry.Backoff
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		newBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
		},
	}
}

// HTTPClient exposes the underlying client so uploads share its settings.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodPost, "/register", "", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}

	var res LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login", "", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Profile(ctx context.Context, token string) (*Profile, error) {
	var p Profile
	if err := c.doIdempotent(ctx, http.MethodGet, "/", token, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Update(ctx context.Context, token string, update ProfileUpdate) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodPost, "/update", token, update, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// TokenIsValid never fails for a bad token; the server answers false.
func (c *Client) TokenIsValid(ctx context.Context, token string) (bool, error) {
	var valid bool
	if err := c.doIdempotent(ctx, http.MethodPost, "/tokenIsValid", token, &valid); err != nil {
		return false, err
	}
	return valid, nil
}

func (c *Client) Delete(ctx context.Context, token string) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodDelete, "/delete", token, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) AvatarUploadURL(ctx context.Context, token string) (*AvatarUpload, error) {
	var u AvatarUpload
	if err := c.do(ctx, http.MethodPost, "/avatar", token, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) AvatarURL(ctx context.Context, token string) (string, error) {
	var res struct {
		URL string `json:"url"`
	}
	if err := c.doIdempotent(ctx, http.MethodGet, "/avatar", token, &res); err != nil {
		return "", err
	}
	return res.URL, nil
}

// Health returns nil when the server and its store are up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

// doIdempotent is do with retries on ErrUnavailable.
func (c *Client) doIdempotent(ctx context.Context, method, path, token string, out any) error {
	return retry.Do(ctx, c.newBackoff(), func(ctx context.Context) error {
		err := c.do(ctx, method, path, token, nil, out)
		if errors.Is(err, ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.TokenHeaderName, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Msg   string `json:"msg"`
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	msg := body.Msg
	if msg == "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
