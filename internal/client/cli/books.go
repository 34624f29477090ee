package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/models"
)

// Books prints every budget book of the caller; the active one is starred.
func (a *App) Books(ctx context.Context, _ []string) error {
	if !a.isLoggedIn() {
		return a.report(ctx, common.ErrNoSession)
	}
	uid := a.userID(ctx)
	books := a.svc.Books.ListBudgetBooks(ctx, uid)
	active := models.PersonalScope()
	if uid != "" {
		active = a.svc.Books.ResolveActiveScope(ctx, uid)
	}

	for i, b := range books {
		mark := " "
		if b.ID == active {
			mark = "*"
		}
		a.printf("%s %d. %s [%s]%s\n", mark, i+1, b.Name, b.Kind, bookDetails(b))
	}
	return nil
}

func bookDetails(b models.BudgetBook) string {
	var parts []string
	if b.Role != "" {
		parts = append(parts, string(b.Role))
	}
	if b.InviteCode != "" {
		parts = append(parts, "code "+b.InviteCode)
	}
	if len(b.Members) > 0 {
		parts = append(parts, fmt.Sprintf("%d members", len(b.Members)))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, ", ")
}

// Use activates a book by its number in the 'books' listing, by party id,
// or "personal".
func (a *App) Use(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.printf("Usage: use <n|personal>\n")
		return nil
	}
	if !a.isLoggedIn() {
		return a.report(ctx, common.ErrNoSession)
	}

	scope, err := a.pickBook(ctx, args[0])
	if err != nil {
		return a.report(ctx, err)
	}
	if err := a.svc.Books.Activate(ctx, scope); err != nil {
		return a.report(ctx, err)
	}
	a.printf("active book: %s\n", a.bookName(ctx, scope))
	return nil
}

func (a *App) pickBook(ctx context.Context, arg string) (models.Scope, error) {
	if arg == "personal" {
		return models.PersonalScope(), nil
	}
	books := a.svc.Books.ListBudgetBooks(ctx, a.userID(ctx))
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(books) {
			return models.Scope{}, fmt.Errorf("book %d: %w", n, common.ErrorNotFound)
		}
		return books[n-1].ID, nil
	}
	for _, b := range books {
		if id, ok := b.ID.PartyID(); ok && id == arg {
			return b.ID, nil
		}
	}
	return models.Scope{}, fmt.Errorf("book %s: %w", arg, common.ErrorNotFound)
}

func (a *App) bookName(ctx context.Context, scope models.Scope) string {
	for _, b := range a.svc.Books.ListBudgetBooks(ctx, a.userID(ctx)) {
		if b.ID == scope {
			return b.Name
		}
	}
	return scope.String()
}

// NewBook creates a shared book, or a personal one with -personal, and
// activates it. A shared book takes over the caller's personal data.
func (a *App) NewBook(ctx context.Context, args []string) error {
	personal := false
	var words []string
	for _, w := range args {
		if w == "-personal" || w == "--personal" {
			personal = true
			continue
		}
		words = append(words, w)
	}
	name := strings.Join(words, " ")
	if name == "" {
		var err error
		if name, err = getSimpleText(a.reader, "Book name", a.out); err != nil {
			return a.report(ctx, err)
		}
	}

	p, err := a.svc.Flows.CreateBook(ctx, name, personal)
	if err != nil {
		return a.report(ctx, err)
	}
	if p.InviteCode != nil {
		a.printf("created %s, invite code %s\n", p.Name, *p.InviteCode)
	} else {
		a.printf("created %s\n", p.Name)
	}
	return nil
}

// Join joins a shared book by invite code after the user agrees to discard
// their personal transactions and categories.
func (a *App) Join(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return a.report(ctx, common.ErrNoSession)
	}
	var code string
	if len(args) > 0 {
		code = args[0]
	} else {
		var err error
		if code, err = getSimpleText(a.reader, "Invite code", a.out); err != nil {
			return a.report(ctx, err)
		}
	}

	ok, err := Confirm(a.reader, "Joining deletes your personal transactions and categories. Continue?", a.out)
	if err != nil {
		return a.report(ctx, err)
	}
	p, err := a.svc.Flows.JoinBook(ctx, code, ok)
	if errors.Is(err, common.ErrConfirmationRequired) {
		a.printf("cancelled\n")
		return nil
	}
	if err != nil {
		return a.report(ctx, err)
	}
	a.printf("joined %s\n", p.Name)
	return nil
}

// activeParty returns the party behind the active book.
func (a *App) activeParty(ctx context.Context) (string, error) {
	uid, err := a.svc.Identity.RequireUser(ctx)
	if err != nil {
		return "", err
	}
	id, ok := a.svc.Books.ResolveActiveScope(ctx, uid).PartyID()
	if !ok {
		return "", fmt.Errorf("%w: the personal book is not a party, switch with 'use' first", common.ErrInvalidInput)
	}
	return id, nil
}

func (a *App) Leave(ctx context.Context, _ []string) error {
	id, err := a.activeParty(ctx)
	if err != nil {
		return a.report(ctx, err)
	}
	if err := a.svc.Parties.LeaveParty(ctx, id); err != nil {
		return a.report(ctx, err)
	}
	a.printf("left the book\n")
	return nil
}

func (a *App) DeleteBook(ctx context.Context, _ []string) error {
	id, err := a.activeParty(ctx)
	if err != nil {
		return a.report(ctx, err)
	}
	ok, err := Confirm(a.reader, "Delete this book with all its transactions and categories?", a.out)
	if err != nil || !ok {
		a.printf("cancelled\n")
		return err
	}
	if err := a.svc.Parties.DeleteParty(ctx, id); err != nil {
		return a.report(ctx, err)
	}
	a.printf("book deleted\n")
	return nil
}

// Rename renames the active book. For the implicit personal book only this
// device's label changes.
func (a *App) Rename(ctx context.Context, args []string) error {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		a.printf("Usage: rename <name>\n")
		return nil
	}
	if !a.isLoggedIn() {
		return a.report(ctx, common.ErrNoSession)
	}
	scope := a.svc.Books.ResolveActiveScope(ctx, a.userID(ctx))
	if _, err := a.svc.Parties.UpdateParty(ctx, scope, name); err != nil {
		return a.report(ctx, err)
	}
	a.printf("renamed to %s\n", name)
	return nil
}

func (a *App) Members(ctx context.Context, _ []string) error {
	id, err := a.activeParty(ctx)
	if err != nil {
		return a.report(ctx, err)
	}
	ms, err := a.svc.Parties.Members(ctx, id)
	if err != nil {
		return a.report(ctx, err)
	}
	a.printMembers(ms)
	return nil
}

func (a *App) printMembers(ms []models.PartyMember) {
	for _, m := range ms {
		a.printf("  %s (%s) %s\n", m.DisplayName, m.Role, m.UserID)
	}
}

// Kick removes a member from the active book; only the host may.
func (a *App) Kick(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.printf("Usage: kick <user id>\n")
		return nil
	}
	id, err := a.activeParty(ctx)
	if err != nil {
		return a.report(ctx, err)
	}
	if err := a.svc.Parties.RemoveMember(ctx, id, args[0]); err != nil {
		return a.report(ctx, err)
	}
	a.printf("removed %s\n", args[0])
	return nil
}

// SyncNames refreshes the member names of the active book from profiles.
func (a *App) SyncNames(ctx context.Context, _ []string) error {
	id, err := a.activeParty(ctx)
	if err != nil {
		return a.report(ctx, err)
	}
	ms, err := a.svc.Parties.SyncMemberDisplayNames(ctx, id, true)
	if err != nil {
		return a.report(ctx, err)
	}
	a.printMembers(ms)
	return nil
}
