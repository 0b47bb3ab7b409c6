package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/client/api"
	"github.com/dmitrijs2005/gophauth/internal/client/services"
)

func printProfile(p *api.Profile) {
	printlnFn("ID:           ", p.ID)
	if p.Email != "" {
		printlnFn("Email:        ", p.Email)
	}
	printlnFn("Display name: ", p.DisplayName)
	printlnFn("Bio:          ", p.Bio)
	if p.Avatar != "" {
		printlnFn("Avatar:       ", p.Avatar)
	}
}

func (a *App) WhoAmI(ctx context.Context) error {
	p, err := a.session.WhoAmI(ctx)
	if err != nil {
		return err
	}
	printProfile(p)
	return nil
}

// Update asks for a new display name and bio; empty answers keep the
// current value.
func (a *App) Update(ctx context.Context) error {
	if !a.isLoggedIn() {
		return services.ErrNotLoggedIn
	}

	name, err := getSimpleText(a.reader, "New display name (empty to keep)", a.out)
	if err != nil {
		return err
	}
	bio, err := getSimpleText(a.reader, "New bio (empty to keep)", a.out)
	if err != nil {
		return err
	}

	if name == "" && bio == "" {
		printlnFn("Nothing to update.")
		return nil
	}

	p, err := a.session.Update(ctx, optional(name), optional(bio))
	if err != nil {
		return err
	}
	printProfile(p)
	return nil
}

// Avatar uploads the file given as argument, or prints the current avatar
// link when called without one.
func (a *App) Avatar(ctx context.Context, args []string) error {
	if len(args) == 0 {
		url, err := a.session.AvatarURL(ctx)
		if err != nil {
			return err
		}
		printlnFn(url)
		return nil
	}

	p, err := a.session.UploadAvatar(ctx, args[0])
	if err != nil {
		return err
	}
	printlnFn("Avatar updated:", p.Avatar)
	return nil
}

// Delete removes the account after an explicit confirmation.
func (a *App) Delete(ctx context.Context) error {
	if !a.isLoggedIn() {
		return services.ErrNotLoggedIn
	}

	answer, err := getSimpleText(a.reader, "Type 'yes' to delete your account permanently", a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") {
		printlnFn("Cancelled.")
		return nil
	}

	p, err := a.session.Delete(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Account %s deleted.", p.Email))
	return nil
}
