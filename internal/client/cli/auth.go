package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/client/api"
	"github.com/dmitrijs2005/gophauth/internal/client/services"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// describe turns an error into a line for the user. Server messages are
// shown as they are.
func describe(err error) string {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, services.ErrNotLoggedIn):
		return "you are not logged in"
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, api.ErrUnavailable):
		return "server unavailable, try again later"
	default:
		return err.Error()
	}
}

// Register asks for email, password (twice) and a display name and
// creates the account. Password buffers are wiped before returning.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	check, err := getPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(check)

	displayName, err := getSimpleText(a.reader, "Display name (optional)", a.out)
	if err != nil {
		return err
	}

	p, err := a.session.Register(ctx, email, password, check, displayName)
	if err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("Registered %s. You can login now.", p.Email))
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	p, err := a.session.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, api.ErrUnavailable) {
			a.setMode(ModeOffline)
		}
		return err
	}

	a.setMode(ModeOnline)
	printlnFn(fmt.Sprintf("Welcome, %s!", p.DisplayName))
	return nil
}

// Check asks the server whether the current token is still accepted.
func (a *App) Check(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("No token held, login first.")
		return nil
	}

	valid, err := a.session.Check(ctx)
	if err != nil {
		return err
	}

	if valid {
		printlnFn("Token is valid.")
	} else {
		printlnFn("Token is no longer valid, please login again.")
	}
	return nil
}

func (a *App) Logout(_ context.Context) error {
	a.session.Logout()
	printlnFn("Logged out.")
	return nil
}
