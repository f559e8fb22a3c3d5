package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	apierrors "github.com/bigkaa/godocportal/internal/api/errors"
	"github.com/bigkaa/godocportal/internal/audit"
	"github.com/bigkaa/godocportal/internal/auth"
	"github.com/bigkaa/godocportal/internal/domain/model"
	"github.com/bigkaa/godocportal/internal/ratelimit"
	"github.com/bigkaa/godocportal/internal/repository"
)

// AuthService — вход пользователей и выдача токенов.
type AuthService struct {
	users    repository.UserRepository
	tokens   *auth.Service
	tracker  *ratelimit.Tracker
	auditLog *audit.Log
	logger   *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.Service,
	tracker *ratelimit.Tracker,
	auditLog *audit.Log,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		tracker:  tracker,
		auditLog: auditLog,
		logger:   logger.With(slog.String("component", "auth_service")),
	}
}

// LoginResult — результат успешного входа.
type LoginResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// Login проверяет email и пароль, выдаёт токен.
//
// Неизвестный email и неверный пароль дают один и тот же ответ:
// различие позволило бы перечислять зарегистрированные адреса.
// Каждая неудача учитывается трекером и попадает в журнал аудита.
func (s *AuthService) Login(ctx context.Context, clientKey, email, password string) (*LoginResult, *Error) {
	genericFailure := func(reason string) *Error {
		s.tracker.RecordFailure(clientKey)
		if err := s.auditLog.Append(audit.Event{
			Category:  audit.CategoryLoginFailed,
			ClientKey: clientKey,
			Message:   reason,
		}); err != nil {
			s.logger.Error("Не удалось записать событие входа в аудит", slog.String("error", err.Error()))
		}
		return &Error{
			StatusCode: http.StatusUnauthorized,
			Code:       apierrors.CodeUnauthorized,
			Message:    "Неверные учётные данные",
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, genericFailure("вход с неизвестным email")
		}
		// Недоступность хранилища — внутренний сбой, не считается
		// неудачей клиента и не учитывается трекером.
		s.logger.Error("Ошибка чтения пользователя при входе", slog.String("error", err.Error()))
		return nil, &Error{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка",
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, genericFailure("вход с неверным паролем")
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("Ошибка выпуска токена", slog.String("error", err.Error()))
		return nil, &Error{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка",
		}
	}

	s.tracker.RecordSuccess(clientKey)

	return &LoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
