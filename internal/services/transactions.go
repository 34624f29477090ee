package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/guest"
	"github.com/google/uuid"
)

// TransactionService reads and writes the transactions of the active scope.
type TransactionService struct {
	remote      remote
	guest       guest.TransactionRepository
	identity    *IdentityService
	books       *BookService
	logger      logging.Logger
	listTimeout time.Duration
}

func NewTransactionService(r remote, g guest.TransactionRepository, identity *IdentityService, books *BookService,
	logger logging.Logger, listTimeout time.Duration) *TransactionService {
	return &TransactionService{
		remote:      r,
		guest:       g,
		identity:    identity,
		books:       books,
		logger:      logging.Component(logger, "transactions"),
		listTimeout: listTimeout,
	}
}

// List returns every transaction of the active scope, newest first.
func (s *TransactionService) List(ctx context.Context) ([]models.Transaction, error) {
	return s.ListMonth(ctx, "")
}

// ListMonth returns the transactions of the active scope dated in month
// ("2025-03"), or all of them for "". Remote failures yield an empty list.
func (s *TransactionService) ListMonth(ctx context.Context, month string) ([]models.Transaction, error) {
	if month != "" {
		if _, err := time.Parse("2006-01", month); err != nil {
			return nil, fmt.Errorf("%w: month %q is not YYYY-MM", common.ErrInvalidInput, month)
		}
	}

	mode, t, err := resolve(ctx, s.identity, s.books, s.remote)
	if err != nil {
		if errors.Is(err, common.ErrRemoteUnavailable) {
			return nil, nil
		}
		return nil, err
	}

	switch mode {
	case models.ModeGuest:
		return s.guest.List(ctx, month)
	case models.ModeAuthenticated:
		lctx, cancel := withListTimeout(ctx, s.listTimeout)
		defer cancel()
		out, err := s.remote.repos.Transactions(s.remote.db).List(lctx, t.userID, t.scope, month)
		if err != nil {
			logDegraded(ctx, s.logger, "transactions", err)
			return nil, nil
		}
		return out, nil
	default:
		return nil, nil
	}
}

// Add stores tx in the active scope, stamping id, creation time, owner and
// party. Writing into a party requires a membership, except for the creator
// of a personal party.
func (s *TransactionService) Add(ctx context.Context, tx *models.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	mode, t, err := resolve(ctx, s.identity, s.books, s.remote)
	if err != nil {
		return err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.CreatedAt = time.Now()

	switch mode {
	case models.ModeGuest:
		return s.guest.Insert(ctx, tx)
	case models.ModeAuthenticated:
		if partyID, ok := t.scope.PartyID(); ok {
			if err := s.checkWriteAccess(ctx, t.userID, partyID); err != nil {
				return err
			}
		}
		tx.UserID = t.userID
		tx.PartyID = t.scope.PartyIDPtr()
		return s.remote.repos.Transactions(s.remote.db).Insert(ctx, tx)
	default:
		return common.ErrNoSession
	}
}

func (s *TransactionService) checkWriteAccess(ctx context.Context, userID, partyID string) error {
	mrepo := s.remote.repos.Members(s.remote.db)
	_, err := mrepo.Get(ctx, partyID, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("check membership: %w", err)
	}

	p, err := s.remote.repos.Parties(s.remote.db).GetByID(ctx, partyID)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorUnauthorized
	}
	if err != nil {
		return fmt.Errorf("check party: %w", err)
	}
	if p.IsPersonal {
		if p.CreatedBy == userID {
			return nil
		}
		return common.ErrorUnauthorized
	}

	owns, err := ownsUnflagged(ctx, mrepo, p, userID)
	if err != nil {
		return err
	}
	if !owns {
		return common.ErrorUnauthorized
	}
	return nil
}

// Update rewrites a transaction of the active scope.
func (s *TransactionService) Update(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("%w: missing id", common.ErrInvalidInput)
	}
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	mode, t, err := resolve(ctx, s.identity, s.books, s.remote)
	if err != nil {
		return err
	}
	switch mode {
	case models.ModeGuest:
		return s.guest.Update(ctx, tx)
	case models.ModeAuthenticated:
		return s.remote.repos.Transactions(s.remote.db).Update(ctx, t.userID, t.scope, tx)
	default:
		return common.ErrNoSession
	}
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	mode, t, err := resolve(ctx, s.identity, s.books, s.remote)
	if err != nil {
		return err
	}
	switch mode {
	case models.ModeGuest:
		return s.guest.Delete(ctx, id)
	case models.ModeAuthenticated:
		return s.remote.repos.Transactions(s.remote.db).Delete(ctx, t.userID, t.scope, id)
	default:
		return common.ErrNoSession
	}
}

// DeletePersonalOnly removes the caller's party-less transactions. On a
// guest device that is the whole guest ledger.
func (s *TransactionService) DeletePersonalOnly(ctx context.Context) error {
	mode, t, err := resolve(ctx, s.identity, s.books, s.remote)
	if err != nil {
		return err
	}
	switch mode {
	case models.ModeGuest:
		return s.guest.DeleteAll(ctx)
	case models.ModeAuthenticated:
		n, err := s.remote.repos.Transactions(s.remote.db).DeletePersonal(ctx, t.userID)
		if err != nil {
			return fmt.Errorf("delete personal transactions: %w", err)
		}
		s.logger.Info(ctx, "personal transactions deleted", "count", n)
		return nil
	default:
		return common.ErrNoSession
	}
}

// MigratePersonalToParty moves every personal transaction of the caller
// into partyID.
func (s *TransactionService) MigratePersonalToParty(ctx context.Context, partyID string) error {
	if err := s.remote.check(); err != nil {
		return err
	}
	uid, err := s.identity.RequireUser(ctx)
	if err != nil {
		return err
	}
	n, err := s.remote.repos.Transactions(s.remote.db).ReparentPersonal(ctx, uid, partyID)
	if err != nil {
		return fmt.Errorf("move personal transactions: %w", err)
	}
	s.logger.Info(ctx, "personal transactions migrated", "party_id", partyID, "moved", n)
	return nil
}
