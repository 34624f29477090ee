package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/budgetbook/internal/auth"
	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/config"
	"github.com/dmitrijs2005/budgetbook/internal/dbx"
	"github.com/dmitrijs2005/budgetbook/internal/device"
	"github.com/dmitrijs2005/budgetbook/internal/events"
	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/categories"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/members"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/parties"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/profiles"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/repomanager"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/transactions"
	"github.com/stretchr/testify/require"
)

// ---- in-memory shared store ----

type fakeStore struct {
	mu         sync.Mutex
	clock      time.Time
	parties    map[string]models.Party
	members    []models.PartyMember
	categories []models.Category
	txs        []models.Transaction
	profiles   map[string]models.Profile
	writes     int

	schemaMismatch    bool
	failMemberAdd     error
	failListByMember  error
	blockListPersonal bool
	hiddenProfiles    map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:          time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		parties:        map[string]models.Party{},
		profiles:       map[string]models.Profile{},
		hiddenProfiles: map[string]bool{},
	}
}

func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func inScope(rowUser string, rowParty *string, userID string, scope models.Scope) bool {
	if id, ok := scope.PartyID(); ok {
		return rowParty != nil && *rowParty == id
	}
	return rowUser == userID && rowParty == nil
}

func strPtr(s string) *string { return &s }

func copyPtr(p *string) *string {
	if p == nil {
		return nil
	}
	return strPtr(*p)
}

type fakeManager struct{ st *fakeStore }

var _ repomanager.RepositoryManager = (*fakeManager)(nil)

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Parties(dbx.DBTX) parties.Repository      { return &fakeParties{m.st} }
func (m *fakeManager) Members(dbx.DBTX) members.Repository      { return &fakeMembers{m.st} }
func (m *fakeManager) Categories(dbx.DBTX) categories.Repository {
	return &fakeCategories{m.st}
}
func (m *fakeManager) Transactions(dbx.DBTX) transactions.Repository {
	return &fakeTransactions{m.st}
}
func (m *fakeManager) Profiles(dbx.DBTX) profiles.Repository { return &fakeProfiles{m.st} }

// ---- parties ----

type fakeParties struct{ st *fakeStore }

func (r *fakeParties) Create(_ context.Context, p *models.Party) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if r.st.schemaMismatch {
		return fmt.Errorf("%w: column \"is_personal\" does not exist", common.ErrSchemaMismatch)
	}
	return r.insert(p)
}

func (r *fakeParties) CreateLegacy(_ context.Context, p *models.Party) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	cp := *p
	cp.IsPersonal = false
	if err := r.insert(&cp); err != nil {
		return err
	}
	p.CreatedAt = cp.CreatedAt
	return nil
}

func (r *fakeParties) insert(p *models.Party) error {
	if _, ok := r.st.parties[p.ID]; ok {
		return common.ErrAlreadyExists
	}
	if p.InviteCode != nil {
		for _, e := range r.st.parties {
			if e.InviteCode != nil && *e.InviteCode == *p.InviteCode {
				return common.ErrAlreadyExists
			}
		}
	}
	p.CreatedAt = r.st.tick()
	cp := *p
	cp.InviteCode = copyPtr(p.InviteCode)
	r.st.parties[p.ID] = cp
	r.st.writes++
	return nil
}

// view returns p as the store reads it back. Without the is_personal column
// a party without members is personal. Callers hold the lock.
func (r *fakeParties) view(p models.Party) models.Party {
	if !r.st.schemaMismatch {
		return p
	}
	p.IsPersonal = true
	for _, m := range r.st.members {
		if m.PartyID == p.ID {
			p.IsPersonal = false
			break
		}
	}
	return p
}

func (r *fakeParties) GetByID(_ context.Context, id string) (*models.Party, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	p, ok := r.st.parties[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	p = r.view(p)
	return &p, nil
}

func (r *fakeParties) GetByInviteCode(_ context.Context, code string) (*models.Party, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, p := range r.st.parties {
		if p.InviteCode != nil && strings.ToUpper(*p.InviteCode) == code {
			p = r.view(p)
			return &p, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeParties) ListPersonal(ctx context.Context, userID string) ([]models.Party, error) {
	if r.st.blockListPersonal {
		<-ctx.Done()
		return nil, fmt.Errorf("db error: %w", ctx.Err())
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []models.Party
	for _, p := range r.st.parties {
		p = r.view(p)
		if p.CreatedBy == userID && p.IsPersonal {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeParties) ListByMember(_ context.Context, userID string) ([]parties.Membership, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if r.st.failListByMember != nil {
		return nil, r.st.failListByMember
	}
	var out []parties.Membership
	for _, m := range r.st.members {
		if m.UserID == userID {
			out = append(out, parties.Membership{Party: r.view(r.st.parties[m.PartyID]), Role: m.Role})
		}
	}
	return out, nil
}

func (r *fakeParties) CountBooks(_ context.Context, userID string) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n := 0
	for _, p := range r.st.parties {
		if p = r.view(p); p.CreatedBy == userID && p.IsPersonal {
			n++
		}
	}
	for _, m := range r.st.members {
		if m.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeParties) UpdateName(_ context.Context, id, name string) (*models.Party, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	p, ok := r.st.parties[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	p.Name = name
	r.st.parties[id] = p
	r.st.writes++
	p = r.view(p)
	return &p, nil
}

func (r *fakeParties) Delete(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	delete(r.st.parties, id)
	kept := r.st.members[:0]
	for _, m := range r.st.members {
		if m.PartyID != id {
			kept = append(kept, m)
		}
	}
	r.st.members = kept
	r.st.writes++
	return nil
}

// ---- members ----

type fakeMembers struct{ st *fakeStore }

func (r *fakeMembers) Add(_ context.Context, m *models.PartyMember) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if r.st.failMemberAdd != nil {
		return r.st.failMemberAdd
	}
	for _, e := range r.st.members {
		if e.PartyID == m.PartyID && e.UserID == m.UserID {
			return common.ErrAlreadyExists
		}
	}
	m.JoinedAt = r.st.tick()
	r.st.members = append(r.st.members, *m)
	r.st.writes++
	return nil
}

func (r *fakeMembers) find(partyID, userID string) int {
	for i, m := range r.st.members {
		if m.PartyID == partyID && m.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *fakeMembers) Get(_ context.Context, partyID, userID string) (*models.PartyMember, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	i := r.find(partyID, userID)
	if i < 0 {
		return nil, common.ErrorNotFound
	}
	m := r.st.members[i]
	return &m, nil
}

func (r *fakeMembers) ListByParty(_ context.Context, partyID string) ([]models.PartyMember, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []models.PartyMember
	for _, m := range r.st.members {
		if m.PartyID == partyID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMembers) Delete(_ context.Context, partyID, userID string) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	i := r.find(partyID, userID)
	if i < 0 {
		return false, nil
	}
	r.st.members = append(r.st.members[:i], r.st.members[i+1:]...)
	r.st.writes++
	return true, nil
}

func (r *fakeMembers) UpdateRole(_ context.Context, partyID, userID string, role models.Role) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	i := r.find(partyID, userID)
	if i < 0 {
		return common.ErrorNotFound
	}
	r.st.members[i].Role = role
	r.st.writes++
	return nil
}

func (r *fakeMembers) UpdateDisplayName(_ context.Context, partyID, userID, name string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	i := r.find(partyID, userID)
	if i < 0 {
		return common.ErrorNotFound
	}
	r.st.members[i].DisplayName = name
	r.st.writes++
	return nil
}

func (r *fakeMembers) UpdateDisplayNameForUser(_ context.Context, userID, name string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for i := range r.st.members {
		if r.st.members[i].UserID == userID {
			r.st.members[i].DisplayName = name
			n++
		}
	}
	r.st.writes++
	return n, nil
}

// ---- categories ----

type fakeCategories struct{ st *fakeStore }

func (r *fakeCategories) List(_ context.Context, userID string, scope models.Scope) ([]models.Category, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []models.Category
	for _, c := range r.st.categories {
		if inScope(c.UserID, c.PartyID, userID, scope) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCategories) Insert(_ context.Context, c *models.Category) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	cp := *c
	cp.PartyID = copyPtr(c.PartyID)
	r.st.categories = append(r.st.categories, cp)
	r.st.writes++
	return nil
}

func (r *fakeCategories) Update(_ context.Context, userID string, scope models.Scope, c *models.Category) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for i, e := range r.st.categories {
		if e.ID == c.ID && inScope(e.UserID, e.PartyID, userID, scope) {
			r.st.categories[i].Type = c.Type
			r.st.categories[i].Name = c.Name
			r.st.writes++
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r *fakeCategories) Delete(_ context.Context, userID string, scope models.Scope, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for i, e := range r.st.categories {
		if e.ID == id && inScope(e.UserID, e.PartyID, userID, scope) {
			r.st.categories = append(r.st.categories[:i], r.st.categories[i+1:]...)
			r.st.writes++
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r *fakeCategories) CountByType(_ context.Context, userID string, scope models.Scope, t models.EntryType) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n := 0
	for _, c := range r.st.categories {
		if c.Type == t && inScope(c.UserID, c.PartyID, userID, scope) {
			n++
		}
	}
	return n, nil
}

func (r *fakeCategories) remove(keep func(models.Category) bool) int64 {
	var n int64
	kept := r.st.categories[:0]
	for _, c := range r.st.categories {
		if keep(c) {
			kept = append(kept, c)
		} else {
			n++
		}
	}
	r.st.categories = kept
	r.st.writes++
	return n
}

func (r *fakeCategories) DeletePersonal(_ context.Context, userID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.remove(func(c models.Category) bool { return !(c.UserID == userID && c.PartyID == nil) }), nil
}

func (r *fakeCategories) DeleteByParty(_ context.Context, partyID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.remove(func(c models.Category) bool { return c.PartyID == nil || *c.PartyID != partyID }), nil
}

func (r *fakeCategories) ReparentPersonal(_ context.Context, userID, partyID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for i, c := range r.st.categories {
		if c.UserID == userID && c.PartyID == nil {
			r.st.categories[i].PartyID = strPtr(partyID)
			n++
		}
	}
	r.st.writes++
	return n, nil
}

// ---- transactions ----

type fakeTransactions struct{ st *fakeStore }

func (r *fakeTransactions) List(_ context.Context, userID string, scope models.Scope, prefix string) ([]models.Transaction, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []models.Transaction
	for _, t := range r.st.txs {
		if inScope(t.UserID, t.PartyID, userID, scope) && strings.HasPrefix(t.Date, prefix) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTransactions) Insert(_ context.Context, t *models.Transaction) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	cp := *t
	cp.PartyID = copyPtr(t.PartyID)
	r.st.txs = append(r.st.txs, cp)
	r.st.writes++
	return nil
}

func (r *fakeTransactions) Update(_ context.Context, userID string, scope models.Scope, t *models.Transaction) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for i, e := range r.st.txs {
		if e.ID == t.ID && inScope(e.UserID, e.PartyID, userID, scope) {
			r.st.txs[i].Date = t.Date
			r.st.txs[i].Type = t.Type
			r.st.txs[i].Category = t.Category
			r.st.txs[i].Amount = t.Amount
			r.st.txs[i].Description = t.Description
			r.st.writes++
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r *fakeTransactions) Delete(_ context.Context, userID string, scope models.Scope, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for i, e := range r.st.txs {
		if e.ID == id && inScope(e.UserID, e.PartyID, userID, scope) {
			r.st.txs = append(r.st.txs[:i], r.st.txs[i+1:]...)
			r.st.writes++
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r *fakeTransactions) remove(keep func(models.Transaction) bool) int64 {
	var n int64
	kept := r.st.txs[:0]
	for _, t := range r.st.txs {
		if keep(t) {
			kept = append(kept, t)
		} else {
			n++
		}
	}
	r.st.txs = kept
	r.st.writes++
	return n
}

func (r *fakeTransactions) DeletePersonal(_ context.Context, userID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.remove(func(t models.Transaction) bool { return !(t.UserID == userID && t.PartyID == nil) }), nil
}

func (r *fakeTransactions) DeleteByParty(_ context.Context, partyID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.remove(func(t models.Transaction) bool { return t.PartyID == nil || *t.PartyID != partyID }), nil
}

func (r *fakeTransactions) ReparentPersonal(_ context.Context, userID, partyID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for i, t := range r.st.txs {
		if t.UserID == userID && t.PartyID == nil {
			r.st.txs[i].PartyID = strPtr(partyID)
			n++
		}
	}
	r.st.writes++
	return n, nil
}

// ---- profiles ----

type fakeProfiles struct{ st *fakeStore }

func (r *fakeProfiles) Get(_ context.Context, userID string) (*models.Profile, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if r.st.hiddenProfiles[userID] {
		return nil, fmt.Errorf("db error: permission denied for table profiles")
	}
	p, ok := r.st.profiles[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &p, nil
}

func (r *fakeProfiles) Upsert(_ context.Context, p *models.Profile) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.profiles[p.UserID] = *p
	r.st.writes++
	return nil
}

// ---- test environment: one device against a shared store ----

const testSecret = "test-secret"

type testEnv struct {
	svc    *Services
	store  *fakeStore
	device *device.Repositories
	mock   sqlmock.Sqlmock
	bus    *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	return newDeviceEnv(t, newFakeStore())
}

// newDeviceEnv returns a fresh device (its own SQLite store) sharing st.
func newDeviceEnv(t *testing.T, st *fakeStore) *testEnv {
	t.Helper()
	ctx := context.Background()

	remoteDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = remoteDB.Close() })

	localDB, repos, err := device.InitDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = localDB.Close() })

	bus := events.NewBus(logging.Discard())
	cfg := &config.Config{JWTSecret: testSecret, ListTimeout: 200 * time.Millisecond}
	svc := New(cfg, Deps{
		RemoteDB: remoteDB,
		Repos:    &fakeManager{st: st},
		Device:   repos,
		Events:   bus,
		Logger:   logging.Discard(),
	})
	return &testEnv{svc: svc, store: st, device: repos, mock: mock, bus: bus}
}

func token(t *testing.T, userID, nickname string, validity time.Duration) string {
	t.Helper()
	p := models.Profile{UserID: userID, Email: userID + "@example.com"}
	if nickname != "" {
		p.Metadata = map[string]any{"nickname": nickname}
	}
	tok, err := auth.GenerateToken(p, []byte(testSecret), validity)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) signIn(t *testing.T, userID, nickname string) {
	t.Helper()
	_, err := e.svc.Identity.SignIn(context.Background(), token(t, userID, nickname, time.Hour))
	require.NoError(t, err)
}

// expectTx declares the begin/commit pair of one store transaction.
func (e *testEnv) expectTx() {
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()
}

// seedParty writes a party and its members directly into st.
func (s *fakeStore) seedParty(p models.Party, ms ...models.PartyMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.CreatedAt = s.tick()
	s.parties[p.ID] = p
	for _, m := range ms {
		m.PartyID = p.ID
		m.JoinedAt = s.tick()
		s.members = append(s.members, m)
	}
}
