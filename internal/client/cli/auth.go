package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/models"
)

// getSimpleText and getToken point to the interactive input helpers and can
// be swapped in tests.
var getSimpleText = GetSimpleText
var getToken = GetToken

func (a *App) ShowMode(ctx context.Context, _ []string) error {
	switch a.mode(ctx) {
	case models.ModeAuthenticated:
		name, _ := a.svc.Identity.DisplayName(ctx)
		a.printf("signed in as %s (%s)\n", name, a.userID(ctx))
	case models.ModeGuest:
		a.printf("guest mode, data stays on this device\n")
	default:
		a.printf("signed out\n")
	}
	return nil
}

// Login signs in with the token given as argument or pasted at the prompt,
// publishes the profile and seeds the personal categories.
func (a *App) Login(ctx context.Context, args []string) error {
	var tok string
	if len(args) > 0 {
		tok = args[0]
	} else {
		var err error
		if tok, err = getToken(a.out); err != nil {
			return a.report(ctx, err)
		}
	}
	if tok == "" {
		return a.report(ctx, fmt.Errorf("%w: empty token", common.ErrInvalidInput))
	}

	sess, err := a.svc.Flows.SignIn(ctx, tok)
	if err != nil {
		return a.report(ctx, err)
	}
	a.printf("signed in as %s\n", sess.Profile().DisplayName())
	return nil
}

func (a *App) Guest(ctx context.Context, _ []string) error {
	if err := a.svc.Identity.ContinueAsGuest(ctx); err != nil {
		return a.report(ctx, err)
	}
	a.printf("continuing as %s\n", common.GuestDisplayName)
	return nil
}

func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.svc.Identity.SignOut(ctx); err != nil {
		return a.report(ctx, err)
	}
	a.printf("signed out\n")
	return nil
}

// Nickname changes the caller's nickname and the display name of every
// membership.
func (a *App) Nickname(ctx context.Context, args []string) error {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		var err error
		if name, err = getSimpleText(a.reader, "New nickname", a.out); err != nil {
			return a.report(ctx, err)
		}
	}
	if err := a.svc.Flows.ChangeNickname(ctx, name); err != nil {
		return a.report(ctx, err)
	}
	a.printf("nickname set to %s\n", name)
	return nil
}
