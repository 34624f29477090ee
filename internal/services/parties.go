package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/dbx"
	"github.com/dmitrijs2005/budgetbook/internal/events"
	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/members"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newInviteCode returns common.InviteCodeLength upper-case alphanumerics,
// each drawn uniformly.
func newInviteCode() (string, error) {
	limit := big.NewInt(int64(len(inviteAlphabet)))
	buf := make([]byte, common.InviteCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("invite code: %w", err)
		}
		buf[i] = inviteAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// NormalizeInviteCode trims and upper-cases a user-typed code.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PartyService creates, joins, renames and deletes the parties behind
// non-implicit budget books and manages their members.
//
// Multi-step operations are sequences of independent calls, each safe to
// repeat; DeleteParty is the one operation run in a store transaction.
type PartyService struct {
	remote   remote
	identity *IdentityService
	books    *BookService
	events   events.Emitter
	logger   logging.Logger
}

func NewPartyService(r remote, identity *IdentityService, books *BookService, emitter events.Emitter,
	logger logging.Logger) *PartyService {
	return &PartyService{
		remote:   r,
		identity: identity,
		books:    books,
		events:   emitter,
		logger:   logging.Component(logger, "parties"),
	}
}

func (s *PartyService) caller(ctx context.Context) (string, error) {
	if err := s.remote.check(); err != nil {
		return "", err
	}
	return s.identity.RequireUser(ctx)
}

func (s *PartyService) checkCapacity(ctx context.Context, userID string) error {
	n, err := s.books.CountBooks(ctx, userID)
	if errors.Is(err, common.ErrSchemaMismatch) {
		s.logger.Warn(ctx, "book count unavailable on legacy schema, skipping cap check", "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("count books: %w", err)
	}
	if n >= common.MaxBudgetBooks {
		return common.ErrCapacityExceeded
	}
	return nil
}

// CreateParty creates a personal or shared party for the caller. A shared
// party gets an invite code and the caller as host; if the host row cannot
// be written the party is deleted again.
func (s *PartyService) CreateParty(ctx context.Context, name string, isPersonal bool) (*models.Party, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", common.ErrInvalidInput)
	}
	if err := s.checkCapacity(ctx, uid); err != nil {
		return nil, err
	}

	p := &models.Party{ID: uuid.NewString(), Name: name, CreatedBy: uid, IsPersonal: isPersonal}
	if !isPersonal {
		code, err := newInviteCode()
		if err != nil {
			return nil, err
		}
		p.InviteCode = &code
	}

	repo := s.remote.repos.Parties(s.remote.db)
	err = repo.Create(ctx, p)
	if errors.Is(err, common.ErrSchemaMismatch) {
		s.logger.Warn(ctx, "parties table has no is_personal column, using legacy insert; migrate the schema",
			"party_id", p.ID, "error", err)
		if p.InviteCode == nil {
			code, err := newInviteCode()
			if err != nil {
				return nil, err
			}
			p.InviteCode = &code
		}
		p.IsPersonal = false
		err = repo.CreateLegacy(ctx, p)
	}
	if err != nil {
		return nil, fmt.Errorf("create party: %w", err)
	}

	if !isPersonal {
		host := &models.PartyMember{
			PartyID:     p.ID,
			UserID:      uid,
			Role:        models.RoleHost,
			DisplayName: s.displayName(ctx, uid),
		}
		if err := s.remote.repos.Members(s.remote.db).Add(ctx, host); err != nil {
			if delErr := repo.Delete(ctx, p.ID); delErr != nil {
				s.logger.Error(ctx, "compensating party delete failed", "party_id", p.ID, "error", delErr)
			}
			return nil, fmt.Errorf("add host: %w", err)
		}
	}

	s.logger.Info(ctx, "party created", "party_id", p.ID, "personal", isPersonal)
	s.events.Emit(ctx, events.Event{Kind: events.BookChanged, Scope: models.PartyScope(p.ID)})
	return p, nil
}

// JoinPartyByCode adds the caller as a member of the party with code.
// Deleting the caller's personal data afterwards is the caller's decision.
func (s *PartyService) JoinPartyByCode(ctx context.Context, code string) (*models.Party, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	code = NormalizeInviteCode(code)
	if code == "" {
		return nil, common.ErrorNotFound
	}

	p, err := s.remote.repos.Parties(s.remote.db).GetByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}

	mrepo := s.remote.repos.Members(s.remote.db)
	_, err = mrepo.Get(ctx, p.ID, uid)
	switch {
	case err == nil:
		return nil, common.ErrAlreadyMember
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("check membership: %w", err)
	}

	if err := s.checkCapacity(ctx, uid); err != nil {
		return nil, err
	}

	m := &models.PartyMember{PartyID: p.ID, UserID: uid, Role: models.RoleMember, DisplayName: s.displayName(ctx, uid)}
	if err := mrepo.Add(ctx, m); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyMember
		}
		return nil, fmt.Errorf("join party: %w", err)
	}

	s.logger.Info(ctx, "party joined", "party_id", p.ID)
	s.events.Emit(ctx, events.Event{Kind: events.BookChanged, Scope: models.PartyScope(p.ID)})
	return p, nil
}

// LeaveParty removes the caller's membership. A leaving host hands the role
// to the longest-standing remaining member first; a party left without
// members is deleted.
func (s *PartyService) LeaveParty(ctx context.Context, partyID string) error {
	uid, err := s.caller(ctx)
	if err != nil {
		return err
	}

	mrepo := s.remote.repos.Members(s.remote.db)
	self, err := mrepo.Get(ctx, partyID, uid)
	if err != nil {
		return err
	}

	list, err := mrepo.ListByParty(ctx, partyID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	var others []models.PartyMember
	for _, m := range list {
		if m.UserID != uid {
			others = append(others, m)
		}
	}

	if self.Role == models.RoleHost && len(others) > 0 && !hasHost(others) {
		next := others[0]
		if err := mrepo.UpdateRole(ctx, partyID, next.UserID, models.RoleHost); err != nil {
			return fmt.Errorf("hand over host: %w", err)
		}
		s.logger.Info(ctx, "host handed over", "party_id", partyID, "user_id", next.UserID)
	}

	if _, err := mrepo.Delete(ctx, partyID, uid); err != nil {
		return fmt.Errorf("leave party: %w", err)
	}

	if len(others) == 0 {
		if err := s.deleteCascade(ctx, partyID); err != nil {
			return fmt.Errorf("delete emptied party: %w", err)
		}
		s.logger.Info(ctx, "emptied party deleted", "party_id", partyID)
	}

	s.afterRemoval(ctx, partyID)
	return nil
}

func hasHost(ms []models.PartyMember) bool {
	for _, m := range ms {
		if m.Role == models.RoleHost {
			return true
		}
	}
	return false
}

// DeleteParty deletes the party with its transactions, categories and
// memberships in one store transaction. Personal parties may be deleted by
// their creator, shared ones by their host.
func (s *PartyService) DeleteParty(ctx context.Context, partyID string) error {
	uid, err := s.caller(ctx)
	if err != nil {
		return err
	}
	p, err := s.remote.repos.Parties(s.remote.db).GetByID(ctx, partyID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, p, uid); err != nil {
		return err
	}
	if err := s.deleteCascade(ctx, partyID); err != nil {
		return fmt.Errorf("delete party: %w", err)
	}

	s.logger.Info(ctx, "party deleted", "party_id", partyID)
	s.afterRemoval(ctx, partyID)
	return nil
}

// deleteCascade removes rows scoped to partyID, then the party. Every step
// tolerates rows that are already gone.
func (s *PartyService) deleteCascade(ctx context.Context, partyID string) error {
	return dbx.WithTx(ctx, s.remote.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.remote.repos.Transactions(tx).DeleteByParty(ctx, partyID); err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		if _, err := s.remote.repos.Categories(tx).DeleteByParty(ctx, partyID); err != nil {
			return fmt.Errorf("delete categories: %w", err)
		}
		return s.remote.repos.Parties(tx).Delete(ctx, partyID)
	})
}

// afterRemoval moves the device off a party the caller lost access to.
func (s *PartyService) afterRemoval(ctx context.Context, partyID string) {
	active, err := s.books.ActiveBookID(ctx)
	if err == nil && active == models.PartyScope(partyID) {
		if err := s.books.SetActiveBookID(ctx, models.PersonalScope()); err != nil {
			s.logger.Warn(ctx, "reset active book", "error", err)
		}
	}
	s.events.Emit(ctx, events.Event{Kind: events.BookChanged, Scope: models.PartyScope(partyID)})
}

// authorize applies the owner/host matrix shared by delete and rename.
func (s *PartyService) authorize(ctx context.Context, p *models.Party, uid string) error {
	if p.IsPersonal {
		if p.CreatedBy == uid {
			return nil
		}
		return common.ErrorUnauthorized
	}

	mrepo := s.remote.repos.Members(s.remote.db)
	m, err := mrepo.Get(ctx, p.ID, uid)
	switch {
	case err == nil:
		if m.Role == models.RoleHost {
			return nil
		}
		return common.ErrorUnauthorized
	case !errors.Is(err, common.ErrorNotFound):
		return fmt.Errorf("check membership: %w", err)
	}

	owns, err := ownsUnflagged(ctx, mrepo, p, uid)
	if err != nil {
		return err
	}
	if !owns {
		return common.ErrorUnauthorized
	}
	return nil
}

// ownsUnflagged reports whether uid created p and p has no members. Rows
// written before the is_personal column existed mark personal parties
// that way.
func ownsUnflagged(ctx context.Context, mrepo members.Repository, p *models.Party, uid string) (bool, error) {
	if p.CreatedBy != uid {
		return false, nil
	}
	list, err := mrepo.ListByParty(ctx, p.ID)
	if err != nil {
		return false, fmt.Errorf("list members: %w", err)
	}
	return len(list) == 0, nil
}

// UpdateParty renames the book of scope. The implicit personal book has no
// row: its name is stored on the device and a nil party is returned.
func (s *PartyService) UpdateParty(ctx context.Context, scope models.Scope, name string) (*models.Party, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", common.ErrInvalidInput)
	}

	partyID, ok := scope.PartyID()
	if !ok {
		uid, err := s.identity.CurrentUserID(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.books.SetPersonalName(ctx, uid, name); err != nil {
			return nil, err
		}
		s.events.Emit(ctx, events.Event{Kind: events.BookChanged, Scope: scope})
		return nil, nil
	}

	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	repo := s.remote.repos.Parties(s.remote.db)
	p, err := repo.GetByID(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, uid); err != nil {
		return nil, err
	}
	p, err = repo.UpdateName(ctx, partyID, name)
	if err != nil {
		return nil, fmt.Errorf("rename party: %w", err)
	}

	s.events.Emit(ctx, events.Event{Kind: events.BookChanged, Scope: scope})
	return p, nil
}

// RemoveMember removes userID from the party. Only the host may do so, and
// not to itself; hosts leave through LeaveParty.
func (s *PartyService) RemoveMember(ctx context.Context, partyID, userID string) error {
	uid, err := s.caller(ctx)
	if err != nil {
		return err
	}
	if userID == uid {
		return fmt.Errorf("%w: use leave to remove yourself", common.ErrInvalidInput)
	}

	mrepo := s.remote.repos.Members(s.remote.db)
	self, err := mrepo.Get(ctx, partyID, uid)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorUnauthorized
	}
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if self.Role != models.RoleHost {
		return common.ErrorUnauthorized
	}

	removed, err := mrepo.Delete(ctx, partyID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if !removed {
		return common.ErrorNotFound
	}

	s.logger.Info(ctx, "member removed", "party_id", partyID, "user_id", userID)
	s.events.Emit(ctx, events.Event{Kind: events.BookChanged, Scope: models.PartyScope(partyID)})
	return nil
}

// Members lists the members of a party, oldest first.
func (s *PartyService) Members(ctx context.Context, partyID string) ([]models.PartyMember, error) {
	if err := s.remote.check(); err != nil {
		return nil, err
	}
	return s.remote.repos.Members(s.remote.db).ListByParty(ctx, partyID)
}

// SyncMemberDisplayNames refreshes member names from their profiles.
// Profiles that cannot be read keep the cached name. With persist, changed
// names are written back; failed writes are logged and skipped.
func (s *PartyService) SyncMemberDisplayNames(ctx context.Context, partyID string, persist bool) ([]models.PartyMember, error) {
	list, err := s.Members(ctx, partyID)
	if err != nil {
		return nil, err
	}

	changed := make([]bool, len(list))
	var g errgroup.Group
	g.SetLimit(4)
	for i := range list {
		g.Go(func() error {
			p, err := s.remote.repos.Profiles(s.remote.db).Get(ctx, list[i].UserID)
			if err != nil {
				s.logger.Debug(ctx, "profile unreadable", "user_id", list[i].UserID, "error", err)
				return nil
			}
			if name := p.DisplayName(); name != list[i].DisplayName {
				list[i].DisplayName = name
				changed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	if persist {
		mrepo := s.remote.repos.Members(s.remote.db)
		for i, m := range list {
			if !changed[i] {
				continue
			}
			if err := mrepo.UpdateDisplayName(ctx, partyID, m.UserID, m.DisplayName); err != nil {
				s.logger.Warn(ctx, "display name not saved", "user_id", m.UserID, "error", err)
			}
		}
	}
	return list, nil
}

// UpdateNickname stores nickname in the caller's profile and copies it to
// every membership row of the caller. The membership copy is best effort.
func (s *PartyService) UpdateNickname(ctx context.Context, nickname string) error {
	uid, err := s.caller(ctx)
	if err != nil {
		return err
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return fmt.Errorf("%w: empty nickname", common.ErrInvalidInput)
	}

	prepo := s.remote.repos.Profiles(s.remote.db)
	p, err := prepo.Get(ctx, uid)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("read profile: %w", err)
		}
		p = s.sessionProfile(ctx, uid)
	}
	meta := make(map[string]any, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		meta[k] = v
	}
	meta["nickname"] = nickname
	p.Metadata = meta
	if err := prepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	n, err := s.remote.repos.Members(s.remote.db).UpdateDisplayNameForUser(ctx, uid, nickname)
	if err != nil {
		s.logger.Warn(ctx, "nickname not copied to memberships", "error", err)
		return nil
	}
	s.logger.Info(ctx, "nickname updated", "memberships", n)
	return nil
}

// displayName is the snapshot written into new membership rows: the stored
// profile first, then the session claims.
func (s *PartyService) displayName(ctx context.Context, uid string) string {
	if p, err := s.remote.repos.Profiles(s.remote.db).Get(ctx, uid); err == nil {
		return p.DisplayName()
	}
	return s.sessionProfile(ctx, uid).DisplayName()
}

func (s *PartyService) sessionProfile(ctx context.Context, uid string) *models.Profile {
	sess, err := s.identity.Session(ctx)
	if err != nil || sess == nil {
		return &models.Profile{UserID: uid}
	}
	p := sess.Profile()
	return &p
}
