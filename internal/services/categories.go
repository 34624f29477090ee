package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/guest"
	"github.com/google/uuid"
)

// DefaultCategories seeds new scopes and empty guest ledgers.
var DefaultCategories = []models.Category{
	{Type: models.Income, Name: "월급"},
	{Type: models.Income, Name: "기타"},
	{Type: models.Expense, Name: "식비"},
	{Type: models.Expense, Name: "생필품"},
	{Type: models.Expense, Name: "공과금"},
	{Type: models.Expense, Name: "월세"},
	{Type: models.Expense, Name: "기타"},
}

// CategoryService reads and writes the categories of the active scope:
// the guest ledger on a guest device, the shared store otherwise.
type CategoryService struct {
	remote      remote
	guest       guest.CategoryRepository
	identity    *IdentityService
	books       *BookService
	logger      logging.Logger
	listTimeout time.Duration
}

func NewCategoryService(r remote, g guest.CategoryRepository, identity *IdentityService, books *BookService,
	logger logging.Logger, listTimeout time.Duration) *CategoryService {
	return &CategoryService{
		remote:      r,
		guest:       g,
		identity:    identity,
		books:       books,
		logger:      logging.Component(logger, "categories"),
		listTimeout: listTimeout,
	}
}

// target is the resolved caller and scope of an authenticated call.
type target struct {
	userID string
	scope  models.Scope
}

// resolve returns the mode and, for authenticated callers, the active
// scope. ModeNone means there is nothing to read or write.
func resolve(ctx context.Context, identity *IdentityService, books *BookService, r remote) (models.Mode, target, error) {
	mode, err := identity.Mode(ctx)
	if err != nil || mode != models.ModeAuthenticated {
		return mode, target{}, err
	}
	if err := r.check(); err != nil {
		return mode, target{}, err
	}
	uid, err := identity.RequireUser(ctx)
	if err != nil {
		return mode, target{}, err
	}
	return mode, target{userID: uid, scope: books.ResolveActiveScope(ctx, uid)}, nil
}

// List returns the categories of the active scope. An empty guest ledger is
// seeded with the defaults first. Remote failures yield an empty list.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	mode, t, err := resolve(ctx, s.identity, s.books, s.remote)
	if err != nil {
		if errors.Is(err, common.ErrRemoteUnavailable) {
			return nil, nil
		}
		return nil, err
	}

	switch mode {
	case models.ModeGuest:
		return s.listGuest(ctx)
	case models.ModeAuthenticated:
		lctx, cancel := withListTimeout(ctx, s.listTimeout)
		defer cancel()
		out, err := s.remote.repos.Categories(s.remote.db).List(lctx, t.userID, t.scope)
		if err != nil {
			logDegraded(ctx, s.logger, "categories", err)
			return nil, nil
		}
		return out, nil
	default:
		return nil, nil
	}
}

func (s *CategoryService) listGuest(ctx context.Context) ([]models.Category, error) {
	out, err := s.guest.List(ctx)
	if err != nil || len(out) > 0 {
		return out, err
	}
	for _, d := range DefaultCategories {
		c := d
		c.ID = uuid.NewString()
		c.CreatedAt = time.Now()
		if err := s.guest.Insert(ctx, &c); err != nil && !errors.Is(err, common.ErrAlreadyExists) {
			return nil, fmt.Errorf("seed guest categories: %w", err)
		}
	}
	return s.guest.List(ctx)
}

// Add stores c in the active scope. A scope holds at most
// common.MaxCategoriesPerType categories per type and no two with the same
// type and name.
func (s *CategoryService) Add(ctx context.Context, c *models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" || !c.Type.Valid() {
		return fmt.Errorf("%w: category needs a type and a name", common.ErrInvalidInput)
	}

	mode, t, err := resolve(ctx, s.identity, s.books, s.remote)
	if err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now()

	switch mode {
	case models.ModeGuest:
		n, err := s.guest.CountByType(ctx, c.Type)
		if err != nil {
			return err
		}
		if n >= common.MaxCategoriesPerType {
			return common.ErrCategoryLimit
		}
		return s.guest.Insert(ctx, c)

	case models.ModeAuthenticated:
		repo := s.remote.repos.Categories(s.remote.db)
		n, err := repo.CountByType(ctx, t.userID, t.scope, c.Type)
		if err != nil {
			return err
		}
		if n >= common.MaxCategoriesPerType {
			return common.ErrCategoryLimit
		}
		existing, err := repo.List(ctx, t.userID, t.scope)
		if err != nil {
			return err
		}
		if taken(existing, c) {
			return common.ErrAlreadyExists
		}
		c.UserID = t.userID
		c.PartyID = t.scope.PartyIDPtr()
		return repo.Insert(ctx, c)

	default:
		return common.ErrNoSession
	}
}

// taken reports whether another category of list has c's type and name.
func taken(list []models.Category, c *models.Category) bool {
	for _, e := range list {
		if e.ID != c.ID && e.Key() == c.Key() {
			return true
		}
	}
	return false
}

// checkRetype applies the per-type cap of Add when c moves to another type.
func checkRetype(list []models.Category, c *models.Category, count func() (int, error)) error {
	for _, e := range list {
		if e.ID != c.ID {
			continue
		}
		if e.Type == c.Type {
			return nil
		}
		n, err := count()
		if err != nil {
			return err
		}
		if n >= common.MaxCategoriesPerType {
			return common.ErrCategoryLimit
		}
		return nil
	}
	return nil
}

// Update renames or retypes a category of the active scope.
func (s *CategoryService) Update(ctx context.Context, c *models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" || c.Name == "" || !c.Type.Valid() {
		return fmt.Errorf("%w: category needs an id, a type and a name", common.ErrInvalidInput)
	}

	mode, t, err := resolve(ctx, s.identity, s.books, s.remote)
	if err != nil {
		return err
	}
	switch mode {
	case models.ModeGuest:
		existing, err := s.guest.List(ctx)
		if err != nil {
			return err
		}
		err = checkRetype(existing, c, func() (int, error) { return s.guest.CountByType(ctx, c.Type) })
		if err != nil {
			return err
		}
		return s.guest.Update(ctx, c)
	case models.ModeAuthenticated:
		repo := s.remote.repos.Categories(s.remote.db)
		existing, err := repo.List(ctx, t.userID, t.scope)
		if err != nil {
			return err
		}
		if taken(existing, c) {
			return common.ErrAlreadyExists
		}
		err = checkRetype(existing, c, func() (int, error) { return repo.CountByType(ctx, t.userID, t.scope, c.Type) })
		if err != nil {
			return err
		}
		return repo.Update(ctx, t.userID, t.scope, c)
	default:
		return common.ErrNoSession
	}
}

func (s *CategoryService) Delete(ctx context.Context, id string) error {
	mode, t, err := resolve(ctx, s.identity, s.books, s.remote)
	if err != nil {
		return err
	}
	switch mode {
	case models.ModeGuest:
		return s.guest.Delete(ctx, id)
	case models.ModeAuthenticated:
		return s.remote.repos.Categories(s.remote.db).Delete(ctx, t.userID, t.scope, id)
	default:
		return common.ErrNoSession
	}
}

// DeletePersonalOnly removes the caller's party-less categories. On a guest
// device that is the whole guest ledger.
func (s *CategoryService) DeletePersonalOnly(ctx context.Context) error {
	mode, t, err := resolve(ctx, s.identity, s.books, s.remote)
	if err != nil {
		return err
	}
	switch mode {
	case models.ModeGuest:
		return s.guest.DeleteAll(ctx)
	case models.ModeAuthenticated:
		n, err := s.remote.repos.Categories(s.remote.db).DeletePersonal(ctx, t.userID)
		if err != nil {
			return fmt.Errorf("delete personal categories: %w", err)
		}
		s.logger.Info(ctx, "personal categories deleted", "count", n)
		return nil
	default:
		return common.ErrNoSession
	}
}

// MigratePersonalToParty moves the caller's personal categories into
// partyID. A personal category whose type and name already exist in the
// party, or that repeats an earlier personal one, is deleted instead. The
// steps are not atomic; running the migration again finishes a partial run.
func (s *CategoryService) MigratePersonalToParty(ctx context.Context, partyID string) error {
	if err := s.remote.check(); err != nil {
		return err
	}
	uid, err := s.identity.RequireUser(ctx)
	if err != nil {
		return err
	}
	repo := s.remote.repos.Categories(s.remote.db)

	inParty, err := repo.List(ctx, uid, models.PartyScope(partyID))
	if err != nil {
		return fmt.Errorf("list party categories: %w", err)
	}
	seen := make(map[string]bool, len(inParty))
	for _, c := range inParty {
		seen[c.Key()] = true
	}

	personal, err := repo.List(ctx, uid, models.PersonalScope())
	if err != nil {
		return fmt.Errorf("list personal categories: %w", err)
	}
	dropped := 0
	for _, c := range personal {
		if !seen[c.Key()] {
			seen[c.Key()] = true
			continue
		}
		err := repo.Delete(ctx, uid, models.PersonalScope(), c.ID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("drop duplicate %s: %w", c.Key(), err)
		}
		dropped++
	}

	moved, err := repo.ReparentPersonal(ctx, uid, partyID)
	if err != nil {
		return fmt.Errorf("move personal categories: %w", err)
	}
	s.logger.Info(ctx, "personal categories migrated", "party_id", partyID, "moved", moved, "dropped", dropped)
	return nil
}

// CreateDefaultsForUser seeds the personal scope of userID, skipping
// defaults that already exist. It returns the number of rows added.
func (s *CategoryService) CreateDefaultsForUser(ctx context.Context, userID string) (int, error) {
	return s.createDefaults(ctx, userID, models.PersonalScope())
}

// CreateDefaultsForParty seeds partyID on behalf of ownerID.
func (s *CategoryService) CreateDefaultsForParty(ctx context.Context, partyID, ownerID string) (int, error) {
	return s.createDefaults(ctx, ownerID, models.PartyScope(partyID))
}

func (s *CategoryService) createDefaults(ctx context.Context, userID string, scope models.Scope) (int, error) {
	if err := s.remote.check(); err != nil {
		return 0, err
	}
	repo := s.remote.repos.Categories(s.remote.db)

	existing, err := repo.List(ctx, userID, scope)
	if err != nil {
		return 0, fmt.Errorf("list categories: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.Key()] = true
	}

	added := 0
	for _, d := range DefaultCategories {
		if have[d.Key()] {
			continue
		}
		c := d
		c.ID = uuid.NewString()
		c.UserID = userID
		c.PartyID = scope.PartyIDPtr()
		c.CreatedAt = time.Now()
		if err := repo.Insert(ctx, &c); err != nil {
			return added, fmt.Errorf("seed %s: %w", c.Key(), err)
		}
		have[c.Key()] = true
		added++
	}
	return added, nil
}
