package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/godocportal/internal/domain/model"
)

// testSecret — секрет подписи для тестов (>= 32 байт, как в конфигурации).
var testSecret = []byte("0123456789abcdef0123456789abcdef")

// testUser возвращает пользователя для тестов.
func testUser() *model.User {
	return &model.User{
		ID:    "11111111-2222-3333-4444-555555555555",
		Email: "student@example.com",
	}
}

// TestIssueVerify_RoundTrip проверяет, что выпущенный токен проходит проверку
// и возвращает идентичность, с которой был выпущен.
func TestIssueVerify_RoundTrip(t *testing.T) {
	svc := NewService(testSecret, time.Hour)

	tokenString, expiresAt, err := svc.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tokenString == "" {
		t.Fatal("Issue вернул пустой токен")
	}
	if !expiresAt.After(time.Now()) {
		t.Errorf("expiresAt = %v, ожидалось время в будущем", expiresAt)
	}

	sub, err := svc.Verify(tokenString)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub.ID != testUser().ID {
		t.Errorf("sub.ID = %q, ожидался %q", sub.ID, testUser().ID)
	}
	if sub.Email != testUser().Email {
		t.Errorf("sub.Email = %q, ожидался %q", sub.Email, testUser().Email)
	}
}

// TestVerify_Expired проверяет, что токен с истёкшим exp отклоняется,
// даже если подпись корректна.
func TestVerify_Expired(t *testing.T) {
	svc := NewService(testSecret, time.Hour)

	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	tokenString, _, err := svc.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Сдвигаем часы за границу TTL
	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }

	_, err = svc.Verify(tokenString)
	if !errors.Is(err, ErrExpired) {
		t.Errorf("Verify: err = %v, ожидался ErrExpired", err)
	}
}

// TestVerify_ExactExpiry проверяет границу: в момент exp токен уже недействителен.
func TestVerify_ExactExpiry(t *testing.T) {
	svc := NewService(testSecret, time.Hour)

	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	tokenString, expiresAt, err := svc.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	svc.now = func() time.Time { return expiresAt }

	if _, err := svc.Verify(tokenString); !errors.Is(err, ErrExpired) {
		t.Errorf("Verify в момент exp: err = %v, ожидался ErrExpired", err)
	}
}

// TestVerify_WrongSecret проверяет, что токен, подписанный другим секретом,
// отклоняется независимо от содержимого payload.
func TestVerify_WrongSecret(t *testing.T) {
	issuer := NewService([]byte("another-secret-another-secret-32b"), time.Hour)
	verifier := NewService(testSecret, time.Hour)

	tokenString, _, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = verifier.Verify(tokenString)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify: err = %v, ожидался ErrInvalidSignature", err)
	}
}

// TestVerify_Malformed проверяет отклонение токенов с некорректной структурой.
func TestVerify_Malformed(t *testing.T) {
	svc := NewService(testSecret, time.Hour)

	cases := []string{
		"",
		"not-a-jwt",
		"aaaa.bbbb",
		"aaaa.bbbb.cccc.dddd",
	}

	for _, tokenString := range cases {
		if _, err := svc.Verify(tokenString); !errors.Is(err, ErrMalformed) {
			t.Errorf("Verify(%q): err = %v, ожидался ErrMalformed", tokenString, err)
		}
	}
}

// TestVerify_EmptySubject проверяет отклонение валидно подписанного токена
// без claim sub.
func TestVerify_EmptySubject(t *testing.T) {
	svc := NewService(testSecret, time.Hour)

	tokenString, _, err := svc.Issue(&model.User{ID: "", Email: "nobody@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := svc.Verify(tokenString); !errors.Is(err, ErrMalformed) {
		t.Errorf("Verify: err = %v, ожидался ErrMalformed", err)
	}
}
