package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/infra"
)

type userRepo struct{}

// NewUserRepository returns a pgx-backed UserRepository.
func NewUserRepository() UserRepository {
	return &userRepo{}
}

const userColumns = `id, telegram_id, username, first_name, role, balance,
	referral_balance, referrer_id, exchange_uid, is_banned, created_at, updated_at`

func (r *userRepo) Create(ctx context.Context, db DBTX, u *domain.User) error {
	_, err := db.Exec(ctx, `
		INSERT INTO users (id, telegram_id, username, first_name, role, balance,
			referral_balance, referrer_id, exchange_uid, is_banned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.TelegramID, u.Username, u.FirstName, string(u.Role),
		infra.Int64ToNumeric(u.Balance), infra.Int64ToNumeric(u.ReferralBalance),
		u.ReferrerID, u.ExchangeUID, u.IsBanned,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepo) FindByTelegramID(ctx context.Context, db DBTX, telegramID int64) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	return scanUser(row)
}

func (r *userRepo) FindByExchangeUID(ctx context.Context, db DBTX, uid string) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE exchange_uid = $1`, uid)
	return scanUser(row)
}

func (r *userRepo) SetExchangeUID(ctx context.Context, db DBTX, id uuid.UUID, uid string) error {
	tag, err := db.Exec(ctx, `
		UPDATE users SET exchange_uid = $2, updated_at = now() WHERE id = $1`, id, uid)
	if err != nil {
		return fmt.Errorf("set exchange uid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("user", id.String())
	}
	return nil
}

// Hold performs the conditional decrement that backs order holds. The guard
// lives in the WHERE clause so concurrent holds can never drive the balance
// negative.
func (r *userRepo) Hold(ctx context.Context, db DBTX, id uuid.UUID, amount int64) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE users SET balance = balance - $2, updated_at = now()
		WHERE id = $1 AND balance >= $2`,
		id, infra.Int64ToNumeric(amount))
	if err != nil {
		return false, fmt.Errorf("hold balance: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *userRepo) Credit(ctx context.Context, db DBTX, id uuid.UUID, amount int64) error {
	tag, err := db.Exec(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = now() WHERE id = $1`,
		id, infra.Int64ToNumeric(amount))
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("user", id.String())
	}
	return nil
}

func (r *userRepo) CreditReferral(ctx context.Context, db DBTX, id uuid.UUID, amount int64) error {
	tag, err := db.Exec(ctx, `
		UPDATE users SET referral_balance = referral_balance + $2, updated_at = now()
		WHERE id = $1`,
		id, infra.Int64ToNumeric(amount))
	if err != nil {
		return fmt.Errorf("credit referral balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("user", id.String())
	}
	return nil
}

func (r *userRepo) DebitReferralIf(ctx context.Context, db DBTX, id uuid.UUID, amount int64) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE users SET referral_balance = referral_balance - $2, updated_at = now()
		WHERE id = $1 AND referral_balance >= $2`,
		id, infra.Int64ToNumeric(amount))
	if err != nil {
		return false, fmt.Errorf("debit referral balance: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *userRepo) ListReferrals(ctx context.Context, db DBTX, referrerID uuid.UUID) ([]domain.User, error) {
	rows, err := db.Query(ctx, `
		SELECT `+userColumns+` FROM users WHERE referrer_id = $1 ORDER BY created_at DESC`,
		referrerID)
	if err != nil {
		return nil, fmt.Errorf("query referrals: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u, err := scanUserRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func scanUserRow(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role string
	var balanceNum, referralNum pgtype.Numeric

	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &role,
		&balanceNum, &referralNum, &u.ReferrerID, &u.ExchangeUID, &u.IsBanned,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Role = domain.Role(role)
	if u.Balance, err = infra.NumericToInt64(balanceNum); err != nil {
		return nil, fmt.Errorf("user balance: %w", err)
	}
	if u.ReferralBalance, err = infra.NumericToInt64(referralNum); err != nil {
		return nil, fmt.Errorf("user referral balance: %w", err)
	}
	return &u, nil
}
