package service

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/repository"
)

var exchangeUIDRegex = regexp.MustCompile(`^\d{4,20}$`)

// UserService handles profiles, referral reporting and account linking.
type UserService struct {
	pool   *pgxpool.Pool
	users  repository.UserRepository
	logger *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(pool *pgxpool.Pool, users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{pool: pool, users: users, logger: logger}
}

// GetProfile returns the user's account.
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, s.pool, userID)
	if err != nil {
		return nil, domain.ErrInternal("load user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user", userID.String())
	}
	return user, nil
}

// LinkExchangeUID attaches an exchange account UID to the user so their
// internal transfers can be matched by the deposit sync. A UID can belong to
// one user at a time.
func (s *UserService) LinkExchangeUID(ctx context.Context, userID uuid.UUID, uid string) error {
	if !exchangeUIDRegex.MatchString(uid) {
		return domain.ErrValidation("exchange uid must be 4 to 20 digits")
	}

	existing, err := s.users.FindByExchangeUID(ctx, s.pool, uid)
	if err != nil {
		return domain.ErrInternal("check exchange uid", err)
	}
	if existing != nil && existing.ID != userID {
		return domain.ErrConflict("this exchange uid is already linked to another account")
	}

	if err := s.users.SetExchangeUID(ctx, s.pool, userID, uid); err != nil {
		return domain.ErrInternal("link exchange uid", err)
	}
	s.logger.Info("exchange uid linked", "user_id", userID)
	return nil
}

// ReferralSummary is the user's referral program state.
type ReferralSummary struct {
	ReferralBalance int64         `json:"referral_balance"`
	Count           int           `json:"count"`
	Referrals       []domain.User `json:"referrals"`
}

// Referrals returns who the user referred and what they earned.
func (s *UserService) Referrals(ctx context.Context, userID uuid.UUID) (*ReferralSummary, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	refs, err := s.users.ListReferrals(ctx, s.pool, userID)
	if err != nil {
		return nil, domain.ErrInternal("list referrals", err)
	}
	return &ReferralSummary{
		ReferralBalance: user.ReferralBalance,
		Count:           len(refs),
		Referrals:       refs,
	}, nil
}

// TelegramProfile is the identity asserted by a verified Telegram login.
type TelegramProfile struct {
	TelegramID int64
	Username   string
	FirstName  string
}

// UpsertTelegramUser finds or creates the account behind a Telegram login.
// referrerID attaches the referrer on first contact only.
func (s *UserService) UpsertTelegramUser(ctx context.Context, p TelegramProfile, referrerID *uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByTelegramID(ctx, s.pool, p.TelegramID)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if user != nil {
		if user.IsBanned {
			return nil, domain.ErrAccountBanned()
		}
		return user, nil
	}

	username := p.Username
	if username == "" {
		username = "tg_" + uuid.NewString()[:8]
	}
	if referrerID != nil {
		ref, err := s.users.FindByID(ctx, s.pool, *referrerID)
		if err != nil || ref == nil {
			referrerID = nil
		}
	}

	tgID := p.TelegramID
	user = &domain.User{
		ID:         uuid.New(),
		TelegramID: &tgID,
		Username:   username,
		FirstName:  p.FirstName,
		Role:       domain.RoleUser,
		ReferrerID: referrerID,
	}
	if err := s.users.Create(ctx, s.pool, user); err != nil {
		return nil, domain.ErrInternal("create user", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "telegram_id", p.TelegramID,
		"referred", referrerID != nil)
	return user, nil
}
