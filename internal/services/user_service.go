package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/repo"
)

// UserService is the user registry: users are created on first interaction
// and looked up by their Telegram id afterwards.
type UserService struct {
	DB *gorm.DB
}

// Ensure returns the user for telegramID, creating it on first contact.
// Username and full name are refreshed when they changed. created reports
// whether a new row was inserted. Concurrent first contacts never produce two
// rows: the loser of the insert race re-reads the winner's row.
func (s *UserService) Ensure(ctx context.Context, telegramID int64, username, fullName string) (u *domain.User, created bool, err error) {
	u, err = repo.GetUserByTelegramID(ctx, s.DB, telegramID)
	switch {
	case err == nil:
		if u.Username != username || u.FullName != fullName {
			if err := repo.UpdateUserProfile(ctx, s.DB, u.ID, username, fullName); err != nil {
				return nil, false, err
			}
			u.Username, u.FullName = username, fullName
		}
		return u, false, nil
	case !isNotFound(err):
		return nil, false, err
	}

	u = &domain.User{TelegramID: telegramID, Username: username, FullName: fullName}
	err = repo.CreateUser(ctx, s.DB, u)
	if errors.Is(err, repo.ErrDuplicate) {
		u, err = repo.GetUserByTelegramID(ctx, s.DB, telegramID)
		return u, false, err
	}
	if err != nil {
		return nil, false, err
	}
	zerolog.Ctx(ctx).Info().Uint("user_id", u.ID).Int64("telegram_id", telegramID).Msg("user registered")
	return u, true, nil
}

// Get returns the user for telegramID or ErrNotFound.
func (s *UserService) Get(ctx context.Context, telegramID int64) (*domain.User, error) {
	u, err := repo.GetUserByTelegramID(ctx, s.DB, telegramID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}
