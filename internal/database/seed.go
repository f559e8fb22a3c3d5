package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/godocportal/internal/domain/model"
	"github.com/bigkaa/godocportal/internal/repository"
)

// seedUser — тестовый пользователь для окружений разработки.
type seedUser struct {
	email    string
	password string
}

// seedUsers — набор тестовых пользователей (DP_SEED_USERS=true).
var seedUsers = []seedUser{
	{email: "test@student.com", password: "password123"},
	{email: "test1@student.com", password: "password123"},
}

// SeedUsers создаёт тестовых пользователей, если они ещё не существуют.
// Идемпотентна: повторный запуск не создаёт дубликатов.
// Только для окружений разработки — включается через DP_SEED_USERS.
func SeedUsers(ctx context.Context, users repository.UserRepository, logger *slog.Logger) error {
	created := 0
	for _, su := range seedUsers {
		_, err := users.GetByEmail(ctx, su.email)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("проверка тестового пользователя %s: %w", su.email, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(su.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("хэширование пароля тестового пользователя: %w", err)
		}

		if err := users.Insert(ctx, &model.User{
			ID:           uuid.New().String(),
			Email:        su.email,
			PasswordHash: string(hash),
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("создание тестового пользователя %s: %w", su.email, err)
		}
		created++
	}

	if created > 0 {
		logger.Info("Созданы тестовые пользователи", slog.Int("count", created))
	}

	return nil
}
