package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"tessera.dev/internal/auth"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func accountRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "secret_digest", "display_name", "role", "org_id", "active", "created_at", "updated_at", "last_login"}).
		AddRow("acc-1", "alice@example.com", "$argon2id$digest", "Alice", "member", "acme", true, now, now, nil)
}

func TestAccountsCreateAndFind(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	acct := &auth.Account{
		ID:           "acc-1",
		Email:        "alice@example.com",
		SecretDigest: "$argon2id$digest",
		DisplayName:  "Alice",
		Role:         auth.RoleMember,
		OrgID:        "acme",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	mock.ExpectExec("insert into accounts").
		WithArgs("acc-1", "alice@example.com", "$argon2id$digest", "Alice", "member", "acme", true, now, now, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := store.Accounts().Create(context.Background(), acct); err != nil {
		t.Fatalf("create: %v", err)
	}

	mock.ExpectQuery("select id, email, secret_digest.*from accounts.*where id").
		WithArgs("acc-1").
		WillReturnRows(accountRow(now))
	got, err := store.Accounts().Find(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Email != "alice@example.com" || got.Role != auth.RoleMember || got.OrgID != "acme" {
		t.Fatalf("unexpected account: %+v", got)
	}
	if got.LastLogin != nil {
		t.Fatalf("expected nil last login, got %v", got.LastLogin)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountsCreateDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into accounts").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	err := store.Accounts().Create(context.Background(), &auth.Account{
		ID:    "acc-1",
		Email: "alice@example.com",
		Role:  auth.RoleMember,
		OrgID: "acme",
	})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAccountsFindNoRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, email, secret_digest.*from accounts.*where email").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)
	if _, err := store.Accounts().FindByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountsListScopesByOrg(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select id, email, secret_digest.*from accounts where org_id").
		WithArgs("acme", 50, 0).
		WillReturnRows(accountRow(now))
	got, err := store.Accounts().List(context.Background(), auth.AccountFilter{OrgID: "acme", Limit: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].OrgID != "acme" {
		t.Fatalf("unexpected listing: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountsUpdateBuildsPartialSet(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	name := "Alice Prime"
	active := false
	mock.ExpectExec(`update accounts set display_name = \$1, active = \$2, updated_at = now\(\) where id = \$3`).
		WithArgs("Alice Prime", false, "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select id, email, secret_digest.*from accounts.*where id").
		WithArgs("acc-1").
		WillReturnRows(accountRow(now))

	if _, err := store.Accounts().Update(context.Background(), "acc-1", auth.AccountUpdate{DisplayName: &name, Active: &active}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountsUpdateMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	name := "Ghost"
	mock.ExpectExec("update accounts set display_name").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if _, err := store.Accounts().Update(context.Background(), "missing", auth.AccountUpdate{DisplayName: &name}); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func refreshRow(now time.Time, expires any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "account_id", "kind", "token_hash", "pair_id", "created_at", "expires_at"}).
		AddRow("tok-r1", "acc-1", "refresh", "digest-r1", "pair-1", now, expires)
}

func TestTokensInsertMapsConstraintErrors(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	token := &auth.SessionToken{
		ID:          "tok-1",
		AccountID:   "acc-1",
		Kind:        auth.TokenKindAccess,
		TokenDigest: "digest-1",
		PairID:      "pair-1",
		CreatedAt:   now,
		ExpiresAt:   now.Add(15 * time.Minute),
	}
	mock.ExpectExec("insert into session_tokens").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	if err := store.Tokens().Insert(context.Background(), token); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict on digest collision, got %v", err)
	}

	mock.ExpectExec("insert into session_tokens").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})
	if err := store.Tokens().Insert(context.Background(), token); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on missing account, got %v", err)
	}
}

func TestTokensFindByDigest(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select id, account_id, kind, token_hash.*from session_tokens").
		WithArgs("digest-r1", "refresh").
		WillReturnRows(refreshRow(now, now.Add(time.Hour)))
	tok, err := store.Tokens().FindByDigest(context.Background(), "digest-r1", auth.TokenKindRefresh)
	if err != nil {
		t.Fatalf("find by digest: %v", err)
	}
	if tok.AccountID != "acc-1" || tok.Kind != auth.TokenKindRefresh || tok.PairID != "pair-1" {
		t.Fatalf("unexpected token: %+v", tok)
	}

	mock.ExpectQuery("select id, account_id, kind, token_hash.*from session_tokens").
		WithArgs("digest-r1", "access").
		WillReturnError(sql.ErrNoRows)
	if _, err := store.Tokens().FindByDigest(context.Background(), "digest-r1", auth.TokenKindAccess); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across kinds, got %v", err)
	}
}

func TestTokensDeleteByAccountCounts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from session_tokens where account_id").
		WithArgs("acc-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := store.Tokens().DeleteByAccount(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("delete by account: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted rows, got %d", n)
	}
}

func TestRotateRefresh(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	access := &auth.SessionToken{
		ID:          "tok-a2",
		Kind:        auth.TokenKindAccess,
		TokenDigest: "digest-a2",
		PairID:      "pair-2",
		CreatedAt:   now,
		ExpiresAt:   now.Add(15 * time.Minute),
	}
	refresh := &auth.SessionToken{
		ID:          "tok-r2",
		Kind:        auth.TokenKindRefresh,
		TokenDigest: "digest-r2",
		PairID:      "pair-2",
		CreatedAt:   now,
		ExpiresAt:   now.Add(30 * 24 * time.Hour),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("delete from session_tokens.*where token_hash.*returning").
		WithArgs("digest-r1", "refresh").
		WillReturnRows(refreshRow(now, now.Add(time.Hour)))
	mock.ExpectQuery("select id, email, secret_digest.*from accounts.*where id").
		WithArgs("acc-1").
		WillReturnRows(accountRow(now))
	mock.ExpectExec("delete from session_tokens where account_id").
		WithArgs("acc-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("insert into session_tokens").
		WithArgs("tok-a2", "acc-1", "access", "digest-a2", "pair-2", now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into session_tokens").
		WithArgs("tok-r2", "acc-1", "refresh", "digest-r2", "pair-2", now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	acct, err := store.RotateRefresh(context.Background(), "digest-r1", now, auth.RotationScopeAccount, access, refresh)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if acct.ID != "acc-1" {
		t.Fatalf("unexpected account: %+v", acct)
	}
	if access.AccountID != "acc-1" || refresh.AccountID != "acc-1" {
		t.Fatal("minted tokens not bound to the consumed token's account")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotateRefreshPairScope(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	access := &auth.SessionToken{ID: "tok-a2", Kind: auth.TokenKindAccess, TokenDigest: "digest-a2", PairID: "pair-2", CreatedAt: now, ExpiresAt: now.Add(15 * time.Minute)}
	refresh := &auth.SessionToken{ID: "tok-r2", Kind: auth.TokenKindRefresh, TokenDigest: "digest-r2", PairID: "pair-2", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}

	mock.ExpectBegin()
	mock.ExpectQuery("delete from session_tokens.*where token_hash.*returning").
		WithArgs("digest-r1", "refresh").
		WillReturnRows(refreshRow(now, now.Add(time.Hour)))
	mock.ExpectQuery("select id, email, secret_digest.*from accounts.*where id").
		WithArgs("acc-1").
		WillReturnRows(accountRow(now))
	mock.ExpectExec("delete from session_tokens where pair_id").
		WithArgs("pair-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into session_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into session_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if _, err := store.RotateRefresh(context.Background(), "digest-r1", now, auth.RotationScopePair, access, refresh); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotateRefreshUnknownToken(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("delete from session_tokens.*where token_hash.*returning").
		WithArgs("digest-x", "refresh").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.RotateRefresh(context.Background(), "digest-x", now, auth.RotationScopeAccount, &auth.SessionToken{}, &auth.SessionToken{})
	if !errors.Is(err, auth.ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotateRefreshExpiredCommitsDeletion(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("delete from session_tokens.*where token_hash.*returning").
		WithArgs("digest-r1", "refresh").
		WillReturnRows(refreshRow(now, now.Add(-time.Minute)))
	mock.ExpectCommit()

	_, err := store.RotateRefresh(context.Background(), "digest-r1", now, auth.RotationScopeAccount, &auth.SessionToken{}, &auth.SessionToken{})
	if !errors.Is(err, auth.ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
	// The consuming delete must commit; nothing else runs in the transaction.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotateRefreshInactiveAccount(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	inactive := sqlmock.NewRows([]string{"id", "email", "secret_digest", "display_name", "role", "org_id", "active", "created_at", "updated_at", "last_login"}).
		AddRow("acc-1", "alice@example.com", "$argon2id$digest", "Alice", "member", "acme", false, now, now, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("delete from session_tokens.*where token_hash.*returning").
		WithArgs("digest-r1", "refresh").
		WillReturnRows(refreshRow(now, now.Add(time.Hour)))
	mock.ExpectQuery("select id, email, secret_digest.*from accounts.*where id").
		WithArgs("acc-1").
		WillReturnRows(inactive)
	mock.ExpectCommit()

	_, err := store.RotateRefresh(context.Background(), "digest-r1", now, auth.RotationScopeAccount, &auth.SessionToken{}, &auth.SessionToken{})
	if !errors.Is(err, auth.ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
