// auth.go — HTTP handler аутентификации Document Portal.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/bigkaa/godocportal/internal/api/errors"
	"github.com/bigkaa/godocportal/internal/api/middleware"
	"github.com/bigkaa/godocportal/internal/ratelimit"
	"github.com/bigkaa/godocportal/internal/service"
)

// AuthHandler — обработчик endpoint'а входа.
type AuthHandler struct {
	authSvc *service.AuthService
	tracker *ratelimit.Tracker
}

// NewAuthHandler создаёт обработчик аутентификации.
func NewAuthHandler(authSvc *service.AuthService, tracker *ratelimit.Tracker) *AuthHandler {
	return &AuthHandler{
		authSvc: authSvc,
		tracker: tracker,
	}
}

// loginRequest — тело запроса POST /api/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse — тело успешного ответа входа.
type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      loginUser `json:"user"`
}

// loginUser — данные пользователя в ответе входа.
type loginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Login обрабатывает POST /api/auth/login.
//
// Endpoint не требует токена, но блокировка клиента действует и здесь:
// заблокированный клиент получает 429 до проверки учётных данных.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	clientKey := middleware.ClientKey(r)

	if allowed, retryAfter := h.tracker.CheckAllowed(clientKey); !allowed {
		apierrors.RateLimited(w, "Слишком много неудачных попыток, повторите позже", retryAfter)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: ожидается JSON с полями email и password")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		apierrors.ValidationError(w, "Поля email и password обязательны")
		return
	}

	result, svcErr := h.authSvc.Login(r.Context(), clientKey, req.Email, req.Password)
	if svcErr != nil {
		apierrors.WriteError(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	resp := loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC(),
		User: loginUser{
			ID:    result.User.ID,
			Email: result.User.Email,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
