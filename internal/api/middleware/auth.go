// auth.go — middleware доступа Document Portal: проверка блокировки
// клиента и валидация Bearer-токена (HS256). Порядок важен: блокировка
// проверяется ДО разбора токена, заблокированный клиент получает 429
// на любой защищённый запрос, включая запросы с валидным токеном.
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/godocportal/internal/api/errors"
	"github.com/bigkaa/godocportal/internal/audit"
	"github.com/bigkaa/godocportal/internal/auth"
	"github.com/bigkaa/godocportal/internal/ratelimit"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeySubject — проверенная идентичность в контексте запроса.
	ContextKeySubject contextKey = "auth_subject"
)

// ClientKey извлекает ключ клиента из адреса соединения.
// Ключ — host-часть RemoteAddr; при невозможности разбора — адрес целиком.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Guard — middleware защищённых маршрутов: блокировка и токен.
type Guard struct {
	tokens   *auth.Service
	tracker  *ratelimit.Tracker
	auditLog *audit.Log
	logger   *slog.Logger
}

// NewGuard создаёт middleware защиты маршрутов.
func NewGuard(tokens *auth.Service, tracker *ratelimit.Tracker, auditLog *audit.Log, logger *slog.Logger) *Guard {
	return &Guard{
		tokens:   tokens,
		tracker:  tracker,
		auditLog: auditLog,
		logger:   logger.With(slog.String("component", "guard")),
	}
}

// Middleware возвращает HTTP middleware для защищённых маршрутов.
//
// Шаг 1: проверка блокировки клиента. Заблокированный клиент получает
// 429 c Retry-After; сам запрос при этом неудачей не считается.
// Шаг 2: извлечение и проверка Bearer-токена. Невалидный токен — 401,
// учитывается трекером и попадает в журнал аудита (invalid_token).
// Шаг 3: идентичность из токена помещается в контекст запроса.
func (g *Guard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := ClientKey(r)

			// Блокировка проверяется до разбора токена
			if allowed, retryAfter := g.tracker.CheckAllowed(clientKey); !allowed {
				apierrors.RateLimited(w, "Слишком много неудачных попыток, повторите позже", retryAfter)
				return
			}

			tokenString, ok := bearerToken(r)
			if !ok {
				g.tokenFailure(w, clientKey, "отсутствует или некорректен заголовок Authorization")
				return
			}

			sub, err := g.tokens.Verify(tokenString)
			if err != nil {
				g.logger.Debug("Токен не прошёл проверку",
					slog.String("error", err.Error()),
					slog.String("client_key", clientKey),
				)
				g.tokenFailure(w, clientKey, "токен не прошёл проверку: "+err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFailure — единый путь отказа по токену: неудача в трекере,
// событие invalid_token в аудите, ответ 401.
func (g *Guard) tokenFailure(w http.ResponseWriter, clientKey, reason string) {
	g.tracker.RecordFailure(clientKey)
	if err := g.auditLog.Append(audit.Event{
		Category:  audit.CategoryInvalidToken,
		ClientKey: clientKey,
		Message:   reason,
	}); err != nil {
		g.logger.Error("Не удалось записать событие токена в аудит", slog.String("error", err.Error()))
	}
	apierrors.Unauthorized(w, "Требуется аутентификация")
}

// bearerToken извлекает токен из заголовка Authorization.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// SubjectFromContext извлекает проверенную идентичность из контекста.
// Возвращает nil, если запрос не проходил через Guard.
func SubjectFromContext(ctx context.Context) *auth.Subject {
	sub, _ := ctx.Value(ContextKeySubject).(*auth.Subject)
	return sub
}
