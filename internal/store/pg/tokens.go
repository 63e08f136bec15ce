package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tessera.dev/internal/auth"
	"tessera.dev/internal/ids"
)

type tokens struct{ db *sql.DB }

const tokenColumns = `id, account_id, kind, token_hash, pair_id, created_at, expires_at`

func scanToken(row rowScanner) (*auth.SessionToken, error) {
	var (
		tok     auth.SessionToken
		kind    string
		expires sql.NullTime
	)
	if err := row.Scan(&tok.ID, &tok.AccountID, &kind, &tok.TokenDigest, &tok.PairID, &tok.CreatedAt, &expires); err != nil {
		return nil, err
	}
	tok.Kind = auth.TokenKind(kind)
	if expires.Valid {
		tok.ExpiresAt = expires.Time
	}
	return &tok, nil
}

func (s tokens) Insert(ctx context.Context, token *auth.SessionToken) error {
	if s.db == nil {
		return errNoDB
	}
	if token.ID == "" {
		token.ID = ids.New()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into session_tokens (id, account_id, kind, token_hash, pair_id, created_at, expires_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, token.ID, token.AccountID, string(token.Kind), token.TokenDigest, token.PairID, token.CreatedAt, nullTime(token.ExpiresAt))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return fmt.Errorf("%w: token digest", auth.ErrConflict)
			case pgErrForeignKeyViolation:
				return auth.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s tokens) FindByDigest(ctx context.Context, digest string, kind auth.TokenKind) (*auth.SessionToken, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	tok, err := scanToken(s.db.QueryRowContext(ctx, `
		select `+tokenColumns+`
		from session_tokens
		where token_hash = $1 and kind = $2
	`, digest, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tok, nil
}

func (s tokens) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from session_tokens where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s tokens) DeleteByDigest(ctx context.Context, digest string) (int64, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from session_tokens where token_hash = $1`, digest)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s tokens) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from session_tokens where account_id = $1`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RotateRefresh consumes the presented refresh row and installs a fresh pair
// inside one transaction. The consuming delete commits even when the exchange
// fails afterwards, so a refresh token is spent on first presentation no
// matter the outcome; concurrent presenters race on the row delete and all
// but one see no row.
func (s *Store) RotateRefresh(ctx context.Context, digest string, now time.Time, scope auth.RotationScope, access, refresh *auth.SessionToken) (*auth.Account, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	consumed, err := scanToken(tx.QueryRowContext(ctx, `
		delete from session_tokens
		where token_hash = $1 and kind = $2
		returning `+tokenColumns+`
	`, digest, string(auth.TokenKindRefresh)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUnknownToken
	}
	if err != nil {
		return nil, err
	}
	if consumed.Expired(now) {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, auth.ErrExpiredToken
	}

	acct, err := scanAccount(tx.QueryRowContext(ctx, `
		select `+accountColumns+`
		from accounts
		where id = $1
	`, consumed.AccountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUnknownToken
	}
	if err != nil {
		return nil, err
	}
	if !acct.Active {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, auth.ErrInactiveAccount
	}

	switch scope {
	case auth.RotationScopePair:
		if _, err := tx.ExecContext(ctx, `delete from session_tokens where pair_id = $1`, consumed.PairID); err != nil {
			return nil, err
		}
	default:
		if _, err := tx.ExecContext(ctx, `delete from session_tokens where account_id = $1`, consumed.AccountID); err != nil {
			return nil, err
		}
	}

	access.AccountID = consumed.AccountID
	refresh.AccountID = consumed.AccountID
	for _, token := range []*auth.SessionToken{access, refresh} {
		if token.ID == "" {
			token.ID = ids.New()
		}
		if _, err := tx.ExecContext(ctx, `
			insert into session_tokens (id, account_id, kind, token_hash, pair_id, created_at, expires_at)
			values ($1, $2, $3, $4, $5, $6, $7)
		`, token.ID, token.AccountID, string(token.Kind), token.TokenDigest, token.PairID, token.CreatedAt, nullTime(token.ExpiresAt)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return acct, nil
}
