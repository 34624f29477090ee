package parties

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var (
	created    = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	partyCols  = []string{"id", "name", "invite_code", "created_by", "is_personal", "created_at"}
	insertFull = `(?s)^INSERT\s+INTO\s+parties\s*\(id,\s*name,\s*invite_code,\s*created_by,\s*is_personal\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+created_at$`
)

func strptr(s string) *string { return &s }

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertFull).
		WithArgs("p1", "Household", "ABCD1234", "u1", false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	p := &models.Party{ID: "p1", Name: "Household", InviteCode: strptr("ABCD1234"), CreatedBy: "u1"}
	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, created, p.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_PersonalHasNullCode(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertFull).
		WithArgs("p2", "Mine", nil, "u1", true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	require.NoError(t, repo.Create(context.Background(), &models.Party{ID: "p2", Name: "Mine", CreatedBy: "u1", IsPersonal: true}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_MissingColumnIsSchemaMismatch(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertFull).
		WillReturnError(&pgconn.PgError{Code: "42703", Message: `column "is_personal" of relation "parties" does not exist`})

	err := repo.Create(context.Background(), &models.Party{ID: "p3", Name: "x", CreatedBy: "u1", IsPersonal: true})
	assert.ErrorIs(t, err, common.ErrSchemaMismatch)
}

func TestCreate_DuplicateCode(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertFull).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.Party{ID: "p4", InviteCode: strptr("AAAA0000")})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestCreateLegacy(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^INSERT\s+INTO\s+parties\s*\(id,\s*name,\s*invite_code,\s*created_by\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+created_at$`
	mock.ExpectQuery(q).
		WithArgs("p5", "Mine", "ZZZZ9999", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	p := &models.Party{ID: "p5", Name: "Mine", InviteCode: strptr("ZZZZ9999"), CreatedBy: "u1", IsPersonal: true}
	require.NoError(t, repo.CreateLegacy(context.Background(), p))
	assert.Equal(t, created, p.CreatedAt)
}

func TestGetByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+id,\s*name,\s*invite_code,\s*created_by,\s*COALESCE\(is_personal,\s*false\),\s*created_at\s+FROM\s+parties\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(partyCols).AddRow("p1", "Household", "ABCD1234", "u1", false, created))

	p, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Household", p.Name)
	require.NotNil(t, p.InviteCode)
	assert.Equal(t, "ABCD1234", *p.InviteCode)

	mock.ExpectQuery(q).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectQuery(q).WithArgs("p1").WillReturnError(errors.New("conn reset"))
	_, err = repo.GetByID(context.Background(), "p1")
	assert.Regexp(t, regexp.MustCompile(`db error: .*conn reset`), err.Error())
}

func TestGetByInviteCode_NullCodeScans(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+.+\s+FROM\s+parties\s+WHERE\s+upper\(invite_code\)\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("ABCD1234").
		WillReturnRows(sqlmock.NewRows(partyCols).AddRow("p1", "Household", "ABCD1234", "u1", false, created))

	p, err := repo.GetByInviteCode(context.Background(), "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}

func TestListPersonal(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+.+\s+FROM\s+parties\s+WHERE\s+created_by\s*=\s*\$1\s+AND\s+is_personal\s+ORDER\s+BY\s+created_at$`
	mock.ExpectQuery(q).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(partyCols).
			AddRow("p2", "Side", nil, "u1", true, created).
			AddRow("p3", "Trip", nil, "u1", true, created.Add(time.Hour)))

	got, err := repo.ListPersonal(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].InviteCode)
	assert.True(t, got[1].IsPersonal)
}

func TestListPersonal_LegacyReadAlsoFails(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+parties`).WillReturnError(&pgconn.PgError{Code: "42703"})
	mock.ExpectQuery(`FROM\s+parties`).WillReturnError(&pgconn.PgError{Code: "42703"})

	_, err := repo.ListPersonal(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrSchemaMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByMember(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+p\.id,.+FROM\s+party_members\s+m\s+JOIN\s+parties\s+p\s+ON\s+p\.id\s*=\s*m\.party_id\s+WHERE\s+m\.user_id\s*=\s*\$1\s+ORDER\s+BY\s+m\.joined_at$`
	mock.ExpectQuery(q).WithArgs("u2").
		WillReturnRows(sqlmock.NewRows(append(partyCols, "role")).
			AddRow("p1", "Household", "ABCD1234", "u1", false, created, "member"))

	got, err := repo.ListByMember(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.RoleMember, got[0].Role)
	assert.Equal(t, "Household", got[0].Party.Name)
}

func TestCountBooks(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+\(SELECT\s+COUNT\(\*\)\s+FROM\s+parties.+\)\s*\+\s*\(SELECT\s+COUNT\(\*\)\s+FROM\s+party_members\s+WHERE\s+user_id\s*=\s*\$1\)$`
	mock.ExpectQuery(q).WithArgs("u1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))

	n, err := repo.CountBooks(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUpdateName(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^UPDATE\s+parties\s+SET\s+name\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+id,.+$`
	mock.ExpectQuery(q).WithArgs("p1", "Home").
		WillReturnRows(sqlmock.NewRows(partyCols).AddRow("p1", "Home", "ABCD1234", "u1", false, created))

	p, err := repo.UpdateName(context.Background(), "p1", "Home")
	require.NoError(t, err)
	assert.Equal(t, "Home", p.Name)

	mock.ExpectQuery(q).WithArgs("gone", "Home").WillReturnError(sql.ErrNoRows)
	_, err = repo.UpdateName(context.Background(), "gone", "Home")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^DELETE\s+FROM\s+parties\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectExec(q).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "p1"))
	require.NoError(t, repo.Delete(context.Background(), "p1"), "deleting twice is fine")
	require.NoError(t, mock.ExpectationsWereMet())
}

func undefinedColumn() error {
	return &pgconn.PgError{Code: "42703", Message: `column "is_personal" does not exist`}
}

func TestReads_LegacySchemaRetry(t *testing.T) {
	legacyCols := `NOT\s+EXISTS\s+\(SELECT\s+1\s+FROM\s+party_members\s+lm\s+WHERE\s+lm\.party_id\s*=\s*parties\.id\)`

	t.Run("get by id", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`COALESCE\(is_personal`).WithArgs("p5").WillReturnError(undefinedColumn())
		mock.ExpectQuery(`(?s)SELECT\s+id,.+` + legacyCols + `.+WHERE\s+id\s*=\s*\$1$`).WithArgs("p5").
			WillReturnRows(sqlmock.NewRows(partyCols).AddRow("p5", "Side", "ZZZZ9999", "u1", true, created))

		p, err := repo.GetByID(context.Background(), "p5")
		require.NoError(t, err)
		assert.True(t, p.IsPersonal)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get by invite code", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`COALESCE\(is_personal`).WithArgs("ABCD1234").WillReturnError(undefinedColumn())
		mock.ExpectQuery(`(?s)` + legacyCols + `.+upper\(invite_code\)`).WithArgs("ABCD1234").
			WillReturnRows(sqlmock.NewRows(partyCols).AddRow("p1", "Household", "ABCD1234", "u1", false, created))

		p, err := repo.GetByInviteCode(context.Background(), "ABCD1234")
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list by member", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`COALESCE\(p\.is_personal`).WithArgs("u2").WillReturnError(undefinedColumn())
		mock.ExpectQuery(`(?s)p\.created_by,\s*false,\s*p\.created_at`).WithArgs("u2").
			WillReturnRows(sqlmock.NewRows(append(partyCols, "role")).
				AddRow("p1", "Household", "ABCD1234", "u1", false, created, "member"))

		got, err := repo.ListByMember(context.Background(), "u2")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Household", got[0].Party.Name)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list personal", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`AND\s+is_personal`).WithArgs("u1").WillReturnError(undefinedColumn())
		mock.ExpectQuery(`(?s)WHERE\s+created_by\s*=\s*\$1\s+AND\s+NOT\s+EXISTS`).WithArgs("u1").
			WillReturnRows(sqlmock.NewRows(partyCols).AddRow("p5", "Side", "ZZZZ9999", "u1", true, created))

		got, err := repo.ListPersonal(context.Background(), "u1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].IsPersonal)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("count books", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`AND\s+is_personal`).WithArgs("u1").WillReturnError(undefinedColumn())
		mock.ExpectQuery(`(?s)NOT\s+EXISTS.+FROM\s+party_members\s+WHERE\s+user_id`).WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))

		n, err := repo.CountBooks(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rename", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`COALESCE\(is_personal`).WithArgs("p5", "Trip").WillReturnError(undefinedColumn())
		mock.ExpectQuery(`(?s)^UPDATE\s+parties.+RETURNING\s+id,.+` + legacyCols).WithArgs("p5", "Trip").
			WillReturnRows(sqlmock.NewRows(partyCols).AddRow("p5", "Trip", "ZZZZ9999", "u1", true, created))

		p, err := repo.UpdateName(context.Background(), "p5", "Trip")
		require.NoError(t, err)
		assert.Equal(t, "Trip", p.Name)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetByID_OtherErrorsAreNotRetried(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM\s+parties`).WithArgs("p1").WillReturnError(errors.New("conn reset"))

	_, err := repo.GetByID(context.Background(), "p1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrSchemaMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}
