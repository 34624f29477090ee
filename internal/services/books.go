package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/events"
	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/metadata"
	"golang.org/x/sync/errgroup"
)

// BookService enumerates the budget books a user can see and tracks which
// one is active on this device.
type BookService struct {
	remote      remote
	meta        metadata.Repository
	identity    *IdentityService
	events      events.Emitter
	logger      logging.Logger
	listTimeout time.Duration
}

func NewBookService(r remote, meta metadata.Repository, identity *IdentityService, emitter events.Emitter,
	logger logging.Logger, listTimeout time.Duration) *BookService {
	return &BookService{
		remote:      r,
		meta:        meta,
		identity:    identity,
		events:      emitter,
		logger:      logging.Component(logger, "books"),
		listTimeout: listTimeout,
	}
}

// ListBudgetBooks returns the implicit personal book, the explicit personal
// parties of userID and every party userID is a member of. A failing or
// timed-out sub-query is logged and its books are left out; the implicit
// personal book is always present.
func (s *BookService) ListBudgetBooks(ctx context.Context, userID string) []models.BudgetBook {
	books := []models.BudgetBook{s.implicitPersonal(ctx, userID)}
	if userID == "" || s.remote.check() != nil {
		return books
	}

	ctx, cancel := withListTimeout(ctx, s.listTimeout)
	defer cancel()

	var (
		personal []models.BudgetBook
		shared   []models.BudgetBook
	)

	var g errgroup.Group
	g.Go(func() error {
		ps, err := s.remote.repos.Parties(s.remote.db).ListPersonal(ctx, userID)
		if err != nil {
			logDegraded(ctx, s.logger, "personal parties", err)
			return nil
		}
		for _, p := range ps {
			personal = append(personal, personalBook(p))
		}
		return nil
	})
	g.Go(func() error {
		shared = s.sharedBooks(ctx, userID)
		return nil
	})
	_ = g.Wait()

	books = append(books, personal...)
	return append(books, shared...)
}

func (s *BookService) sharedBooks(ctx context.Context, userID string) []models.BudgetBook {
	ms, err := s.remote.repos.Parties(s.remote.db).ListByMember(ctx, userID)
	if err != nil {
		logDegraded(ctx, s.logger, "memberships", err)
		return nil
	}

	out := make([]models.BudgetBook, len(ms))
	var g errgroup.Group
	g.SetLimit(4)
	for i, m := range ms {
		out[i] = sharedBook(m.Party, m.Role)
		g.Go(func() error {
			list, err := s.remote.repos.Members(s.remote.db).ListByParty(ctx, m.Party.ID)
			if err != nil {
				logDegraded(ctx, s.logger, "members of "+m.Party.ID, err)
				return nil
			}
			out[i].Members = list
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *BookService) implicitPersonal(ctx context.Context, userID string) models.BudgetBook {
	name, err := s.PersonalName(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "personal name override unreadable", "error", err)
		name = common.DefaultPersonalBookName
	}
	return models.BudgetBook{
		ID:         models.PersonalScope(),
		Name:       name,
		Kind:       models.BookPersonal,
		IsPersonal: true,
		IsImplicit: true,
		CreatedBy:  userID,
	}
}

func personalBook(p models.Party) models.BudgetBook {
	return models.BudgetBook{
		ID:         models.PartyScope(p.ID),
		Name:       p.Name,
		Kind:       models.BookPersonal,
		IsPersonal: true,
		CreatedBy:  p.CreatedBy,
		CreatedAt:  p.CreatedAt,
	}
}

func sharedBook(p models.Party, role models.Role) models.BudgetBook {
	b := models.BudgetBook{
		ID:        models.PartyScope(p.ID),
		Name:      p.Name,
		Kind:      models.BookShared,
		Role:      role,
		CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt,
	}
	if p.InviteCode != nil {
		b.InviteCode = *p.InviteCode
	}
	return b
}

// ActiveBookID returns the scope stored on this device, Personal if unset.
func (s *BookService) ActiveBookID(ctx context.Context) (models.Scope, error) {
	v, ok, err := s.meta.Get(ctx, metadata.KeyActiveBook)
	if err != nil {
		return models.PersonalScope(), fmt.Errorf("read active book: %w", err)
	}
	if !ok {
		return models.PersonalScope(), nil
	}
	return models.ParseScope(v), nil
}

func (s *BookService) SetActiveBookID(ctx context.Context, scope models.Scope) error {
	if err := s.meta.Set(ctx, metadata.KeyActiveBook, scope.String()); err != nil {
		return fmt.Errorf("store active book: %w", err)
	}
	return nil
}

// ActiveBook looks the stored scope up among the books of userID. It returns
// nil when the scope no longer resolves.
func (s *BookService) ActiveBook(ctx context.Context, userID string) (*models.BudgetBook, error) {
	scope, err := s.ActiveBookID(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range s.ListBudgetBooks(ctx, userID) {
		if b.ID == scope {
			return &b, nil
		}
	}
	return nil, nil
}

// ResolveActiveScope returns the scope reads and writes should target. A
// stored party the caller can no longer see resets the device to Personal.
// Guests always get Personal. An unreachable store keeps the stored scope.
func (s *BookService) ResolveActiveScope(ctx context.Context, userID string) models.Scope {
	scope, err := s.ActiveBookID(ctx)
	if err != nil {
		s.logger.Warn(ctx, "active book unreadable", "error", err)
		return models.PersonalScope()
	}
	partyID, ok := scope.PartyID()
	if !ok {
		return scope
	}
	if userID == "" {
		return models.PersonalScope()
	}

	visible, err := s.canSee(ctx, userID, partyID)
	if err != nil {
		logDegraded(ctx, s.logger, "active book", err)
		return scope
	}
	if visible {
		return scope
	}

	s.logger.Info(ctx, "active book no longer resolves, falling back to personal", "party_id", partyID)
	if err := s.SetActiveBookID(ctx, models.PersonalScope()); err != nil {
		s.logger.Warn(ctx, "reset active book", "error", err)
	}
	return models.PersonalScope()
}

func (s *BookService) canSee(ctx context.Context, userID, partyID string) (bool, error) {
	if err := s.remote.check(); err != nil {
		return false, err
	}
	ctx, cancel := withListTimeout(ctx, s.listTimeout)
	defer cancel()

	p, err := s.remote.repos.Parties(s.remote.db).GetByID(ctx, partyID)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if p.IsPersonal {
		return p.CreatedBy == userID, nil
	}

	_, err = s.remote.repos.Members(s.remote.db).Get(ctx, partyID, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		// Legacy personal rows carry neither the flag nor members.
		return p.CreatedBy == userID, nil
	default:
		return false, err
	}
}

// Activate stores scope and notifies listeners.
func (s *BookService) Activate(ctx context.Context, scope models.Scope) error {
	if err := s.SetActiveBookID(ctx, scope); err != nil {
		return err
	}
	s.events.Emit(ctx, events.Event{Kind: events.BookChanged, Scope: scope})
	return nil
}

// PersonalName returns the override name of the implicit personal book of
// userID, or the default.
func (s *BookService) PersonalName(ctx context.Context, userID string) (string, error) {
	v, ok, err := s.meta.Get(ctx, metadata.PersonalNameKey(userID))
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(v) == "" {
		return common.DefaultPersonalBookName, nil
	}
	return v, nil
}

func (s *BookService) SetPersonalName(ctx context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty name", common.ErrInvalidInput)
	}
	if err := s.meta.Set(ctx, metadata.PersonalNameKey(userID), name); err != nil {
		return fmt.Errorf("store personal name: %w", err)
	}
	return nil
}

// CountBooks counts the implicit personal book plus every party-backed book
// of userID. The count is advisory: concurrent creators can both pass it.
func (s *BookService) CountBooks(ctx context.Context, userID string) (int, error) {
	if err := s.remote.check(); err != nil {
		return 0, err
	}
	n, err := s.remote.repos.Parties(s.remote.db).CountBooks(ctx, userID)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}
