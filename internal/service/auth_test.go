package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/godocportal/internal/audit"
	"github.com/bigkaa/godocportal/internal/auth"
	"github.com/bigkaa/godocportal/internal/domain/model"
	"github.com/bigkaa/godocportal/internal/ratelimit"
	"github.com/bigkaa/godocportal/internal/repository"
)

// fakeUserRepo — in-memory реализация UserRepository для тестов.
type fakeUserRepo struct {
	byEmail map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*model.User)}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Insert(_ context.Context, u *model.User) error {
	r.byEmail[u.Email] = u
	return nil
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuthTestEnv(t *testing.T) (*AuthService, *audit.Log, *ratelimit.Tracker) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.log"), logger)
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { auditLog.Close() })

	tracker := ratelimit.NewTracker(10, time.Minute, 10*time.Minute, 100, auditLog, logger)

	users := newFakeUserRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	users.Insert(context.Background(), &model.User{
		ID:           "aaaaaaaa-0000-0000-0000-000000000001",
		Email:        "test@student.com",
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})

	tokens := auth.NewService([]byte(testSecret), time.Hour)

	return NewAuthService(users, tokens, tracker, auditLog, logger), auditLog, tracker
}

// TestLogin_Success проверяет выдачу валидного токена при верных
// учётных данных.
func TestLogin_Success(t *testing.T) {
	svc, _, _ := newAuthTestEnv(t)

	result, svcErr := svc.Login(context.Background(), "192.0.2.10", "test@student.com", "password123")
	if svcErr != nil {
		t.Fatalf("Login: %v", svcErr)
	}
	if result.Token == "" {
		t.Error("пустой токен")
	}
	if result.User.Email != "test@student.com" {
		t.Errorf("Email = %q", result.User.Email)
	}

	sub, err := auth.NewService([]byte(testSecret), time.Hour).Verify(result.Token)
	if err != nil {
		t.Fatalf("выданный токен не проходит проверку: %v", err)
	}
	if sub.ID != result.User.ID {
		t.Errorf("Subject.ID = %q, ожидался %q", sub.ID, result.User.ID)
	}
}

// TestLogin_GenericFailure проверяет, что неизвестный email и неверный
// пароль дают один и тот же ответ.
func TestLogin_GenericFailure(t *testing.T) {
	svc, auditLog, _ := newAuthTestEnv(t)

	_, unknownErr := svc.Login(context.Background(), "192.0.2.10", "nobody@student.com", "password123")
	if unknownErr == nil {
		t.Fatal("вход с неизвестным email разрешён")
	}
	_, badPassErr := svc.Login(context.Background(), "192.0.2.10", "test@student.com", "wrongpass")
	if badPassErr == nil {
		t.Fatal("вход с неверным паролем разрешён")
	}

	if unknownErr.StatusCode != badPassErr.StatusCode || unknownErr.Code != badPassErr.Code || unknownErr.Message != badPassErr.Message {
		t.Errorf("ответы различаются: %+v vs %+v (утечка существования email)", unknownErr, badPassErr)
	}
	if unknownErr.StatusCode != 401 {
		t.Errorf("StatusCode = %d, ожидался 401", unknownErr.StatusCode)
	}

	events, err := auditLog.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	count := 0
	for _, ev := range events {
		if ev.Category == audit.CategoryLoginFailed {
			count++
		}
	}
	if count != 2 {
		t.Errorf("событий login_failed = %d, ожидалось 2", count)
	}
}

// TestLogin_FailuresCountTowardBlock проверяет накопление неудач входа
// до блокировки клиента.
func TestLogin_FailuresCountTowardBlock(t *testing.T) {
	svc, _, tracker := newAuthTestEnv(t)

	for i := 0; i < 10; i++ {
		svc.Login(context.Background(), "192.0.2.66", "test@student.com", "wrongpass")
	}

	if allowed, _ := tracker.CheckAllowed("192.0.2.66"); allowed {
		t.Error("клиент не заблокирован после 10 неудачных входов")
	}
}

// TestLogin_SuccessResetsFailures проверяет сброс счётчика неудач
// после успешного входа.
func TestLogin_SuccessResetsFailures(t *testing.T) {
	svc, _, tracker := newAuthTestEnv(t)

	for i := 0; i < 9; i++ {
		svc.Login(context.Background(), "192.0.2.10", "test@student.com", "wrongpass")
	}
	if _, svcErr := svc.Login(context.Background(), "192.0.2.10", "test@student.com", "password123"); svcErr != nil {
		t.Fatalf("Login: %v", svcErr)
	}

	if n := tracker.TrackedClients(); n != 0 {
		t.Errorf("TrackedClients = %d, ожидалось 0 после успешного входа", n)
	}
}
