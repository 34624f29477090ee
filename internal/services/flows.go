package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/models"
)

// FlowService composes the multi-step procedures the client runs. None of
// them is atomic; each step can be repeated safely, so a failed flow is
// finished by running it again.
type FlowService struct {
	remote       remote
	identity     *IdentityService
	books        *BookService
	parties      *PartyService
	categories   *CategoryService
	transactions *TransactionService
	logger       logging.Logger
}

func NewFlowService(r remote, identity *IdentityService, books *BookService, parties *PartyService,
	categories *CategoryService, transactions *TransactionService, logger logging.Logger) *FlowService {
	return &FlowService{
		remote:       r,
		identity:     identity,
		books:        books,
		parties:      parties,
		categories:   categories,
		transactions: transactions,
		logger:       logging.Component(logger, "flows"),
	}
}

// CreateBook creates a party, seeds its categories, moves the caller's
// personal data into it when it is shared, and activates it.
func (s *FlowService) CreateBook(ctx context.Context, name string, isPersonal bool) (*models.Party, error) {
	p, err := s.parties.CreateParty(ctx, name, isPersonal)
	if err != nil {
		return nil, err
	}

	if _, err := s.categories.CreateDefaultsForParty(ctx, p.ID, p.CreatedBy); err != nil {
		s.logger.Warn(ctx, "default categories not seeded", "party_id", p.ID, "error", err)
	}

	if !isPersonal {
		if err := s.transactions.MigratePersonalToParty(ctx, p.ID); err != nil {
			return p, fmt.Errorf("book created, moving transactions failed: %w", err)
		}
		if err := s.categories.MigratePersonalToParty(ctx, p.ID); err != nil {
			return p, fmt.Errorf("book created, moving categories failed: %w", err)
		}
	}

	if err := s.books.Activate(ctx, models.PartyScope(p.ID)); err != nil {
		return p, err
	}
	return p, nil
}

// JoinBook joins the party with code, discards the caller's personal
// transactions and categories, and activates the party. The discard cannot
// be undone, so the caller must confirm it.
func (s *FlowService) JoinBook(ctx context.Context, code string, confirmDiscard bool) (*models.Party, error) {
	if !confirmDiscard {
		return nil, common.ErrConfirmationRequired
	}

	p, err := s.parties.JoinPartyByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.transactions.DeletePersonalOnly(ctx); err != nil {
		return p, fmt.Errorf("joined, discarding personal transactions failed: %w", err)
	}
	if err := s.categories.DeletePersonalOnly(ctx); err != nil {
		return p, fmt.Errorf("joined, discarding personal categories failed: %w", err)
	}

	if err := s.books.Activate(ctx, models.PartyScope(p.ID)); err != nil {
		return p, err
	}
	return p, nil
}

// SignIn starts a session, publishes the caller's profile and seeds the
// personal default categories. Only the session step can fail the call.
func (s *FlowService) SignIn(ctx context.Context, token string) (*models.Session, error) {
	if err := s.remote.check(); err != nil {
		return nil, err
	}
	sess, err := s.identity.SignIn(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.publishProfile(ctx, sess); err != nil {
		s.logger.Warn(ctx, "profile not published", "error", err)
	}
	if _, err := s.categories.CreateDefaultsForUser(ctx, sess.UserID); err != nil {
		s.logger.Warn(ctx, "default categories not seeded", "error", err)
	}
	return sess, nil
}

func (s *FlowService) ChangeNickname(ctx context.Context, nickname string) error {
	return s.parties.UpdateNickname(ctx, nickname)
}

// publishProfile writes the session claims to the caller's profile. Keys
// already stored, such as a nickname set earlier, win over the claims.
func (s *FlowService) publishProfile(ctx context.Context, sess *models.Session) error {
	repo := s.remote.repos.Profiles(s.remote.db)
	p := sess.Profile()

	stored, err := repo.Get(ctx, sess.UserID)
	switch {
	case err == nil:
		meta := make(map[string]any, len(p.Metadata)+len(stored.Metadata))
		for k, v := range p.Metadata {
			meta[k] = v
		}
		for k, v := range stored.Metadata {
			meta[k] = v
		}
		p.Metadata = meta
	case !errors.Is(err, common.ErrorNotFound):
		return err
	}
	return repo.Upsert(ctx, &p)
}
