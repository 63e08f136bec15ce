package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tessera.dev/internal/auth"
	"tessera.dev/internal/ids"
)

type accounts struct{ db *sql.DB }

const accountColumns = `id, email, secret_digest, display_name, role, org_id, active, created_at, updated_at, last_login`

type rowScanner interface{ Scan(dest ...any) error }

func scanAccount(row rowScanner) (*auth.Account, error) {
	var (
		acct      auth.Account
		role      string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&acct.ID, &acct.Email, &acct.SecretDigest, &acct.DisplayName, &role, &acct.OrgID, &acct.Active, &acct.CreatedAt, &acct.UpdatedAt, &lastLogin); err != nil {
		return nil, err
	}
	acct.Role = auth.Role(role)
	acct.LastLogin = timePtr(lastLogin)
	return &acct, nil
}

func (s accounts) Create(ctx context.Context, acct *auth.Account) error {
	if s.db == nil {
		return errNoDB
	}
	if acct.ID == "" {
		acct.ID = ids.New()
	}
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	if acct.UpdatedAt.IsZero() {
		acct.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		insert into accounts (id, email, secret_digest, display_name, role, org_id, active, created_at, updated_at, last_login)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, acct.ID, acct.Email, acct.SecretDigest, acct.DisplayName, string(acct.Role), acct.OrgID, acct.Active, acct.CreatedAt, acct.UpdatedAt, nullTimePtr(acct.LastLogin))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: email already registered", auth.ErrConflict)
		}
		return err
	}
	return nil
}

func (s accounts) Find(ctx context.Context, id string) (*auth.Account, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	acct, err := scanAccount(s.db.QueryRowContext(ctx, `
		select `+accountColumns+`
		from accounts
		where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s accounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	acct, err := scanAccount(s.db.QueryRowContext(ctx, `
		select `+accountColumns+`
		from accounts
		where email = $1
	`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s accounts) List(ctx context.Context, f auth.AccountFilter) ([]*auth.Account, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	query := `select ` + accountColumns + ` from accounts`
	var args []any
	if f.OrgID != "" {
		query += ` where org_id = $1`
		args = append(args, f.OrgID)
	}
	query += fmt.Sprintf(` order by created_at, id limit $%d offset $%d`, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*auth.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s accounts) Update(ctx context.Context, id string, upd auth.AccountUpdate) (*auth.Account, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.DisplayName != nil {
		sets = append(sets, fmt.Sprintf("display_name = $%d", idx))
		args = append(args, strings.TrimSpace(*upd.DisplayName))
		idx++
	}
	if upd.Role != nil {
		sets = append(sets, fmt.Sprintf("role = $%d", idx))
		args = append(args, string(*upd.Role))
		idx++
	}
	if upd.Active != nil {
		sets = append(sets, fmt.Sprintf("active = $%d", idx))
		args = append(args, *upd.Active)
		idx++
	}
	if upd.SecretDigest != nil {
		sets = append(sets, fmt.Sprintf("secret_digest = $%d", idx))
		args = append(args, *upd.SecretDigest)
		idx++
	}
	if upd.LastLogin != nil {
		sets = append(sets, fmt.Sprintf("last_login = $%d", idx))
		args = append(args, *upd.LastLogin)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update accounts set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if aff == 0 {
			return nil, auth.ErrNotFound
		}
	}
	return s.Find(ctx, id)
}
