package sqlite

import (
	"context"

	"github.com/hatchway/gatehouse/internal/gate/domain"
)

const userColumns = `id, email, password_hash, status, role,
	mfa_enabled, mfa_secret, mfa_period, last_login, created_at, updated_at`

type usersRepo struct {
	q querier
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row.Scan)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		domain.NormalizeEmail(email))

	u, err := scanUser(row.Scan)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, status, role, mfa_secret, mfa_period)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		domain.NormalizeEmail(u.Email),
		u.PasswordHash,
		string(u.Status),
		string(u.Role),
		mapOptionalString(u.MFASecret),
		int64(u.MFAPeriod),
	)
	return mapConflict(err)
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (r *usersRepo) SetStatus(ctx context.Context, userID string, status domain.Status) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), userID)
	return err
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newHash, userID)
	return err
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?`, userID)
	return err
}

func (r *usersRepo) UpdateMFASecret(ctx context.Context, userID, secret string, period uint) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET mfa_secret = ?, mfa_period = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		secret, int64(period), userID)
	return err
}

func (r *usersRepo) EnableMFA(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET mfa_enabled = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, userID)
	return err
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET mfa_enabled = NULL, mfa_secret = NULL, mfa_period = 0,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, userID)
	return err
}
