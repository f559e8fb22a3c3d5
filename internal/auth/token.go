// Пакет auth — выпуск и проверка подписанных токенов идентичности.
// Токены — JWT HS256 с общепроцессным симметричным секретом, без
// серверного хранилища сессий. Проверка не требует обращений к БД:
// структура, подпись и срок действия валидируются из самого токена.
//
// Ограничение конструкции: немедленный отзыв токена невозможен —
// токен живёт до истечения exp. Смягчается коротким TTL.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/godocportal/internal/domain/model"
)

// Ошибки проверки токена.
var (
	// ErrMalformed — токен не разбирается как JWT.
	ErrMalformed = errors.New("токен имеет некорректную структуру")
	// ErrExpired — срок действия токена истёк.
	ErrExpired = errors.New("срок действия токена истёк")
	// ErrInvalidSignature — подпись не совпадает с текущим секретом.
	ErrInvalidSignature = errors.New("подпись токена недействительна")
)

// Claims — утверждения токена Document Portal.
type Claims struct {
	jwt.RegisteredClaims
	// Email — адрес пользователя на момент выдачи (информационный).
	Email string `json:"email,omitempty"`
}

// Subject — проверенная идентичность, извлечённая из токена.
type Subject struct {
	// ID — идентификатор пользователя (claim sub)
	ID string
	// Email — email из токена
	Email string
}

// Service — сервис выпуска и проверки токенов.
type Service struct {
	secret []byte
	ttl    time.Duration
	// now — источник времени, подменяется в тестах
	now func() time.Time
}

// NewService создаёт сервис токенов.
// secret — общепроцессный секрет подписи (только чтение после старта).
// ttl — время жизни выдаваемых токенов.
func NewService(secret []byte, ttl time.Duration) *Service {
	return &Service{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue выпускает подписанный токен для пользователя.
// Возвращает строку токена и момент истечения его действия.
// Побочных эффектов нет: токен самодостаточен.
func (s *Service) Issue(user *model.User) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: user.Email,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("подпись токена: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify проверяет подпись и срок действия токена.
// Возвращает идентичность из claims. Разрешение идентичности в запись
// пользователя (поиск по id) — забота вызывающего кода: сервис токенов
// не владеет реестром пользователей.
func (s *Service) Verify(tokenString string) (*Subject, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformed
		}
	}

	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	if claims.Subject == "" {
		return nil, ErrMalformed
	}

	return &Subject{
		ID:    claims.Subject,
		Email: claims.Email,
	}, nil
}
