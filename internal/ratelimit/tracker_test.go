package ratelimit

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/godocportal/internal/audit"
)

// newTestTracker создаёт трекер с журналом аудита во временной директории.
// Порог 10, блокировка 60s, окно 10m — значения по умолчанию.
func newTestTracker(t *testing.T) (*Tracker, *audit.Log) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.log"), logger)
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { auditLog.Close() })

	return NewTracker(10, 60*time.Second, 10*time.Minute, 100, auditLog, logger), auditLog
}

// TestNinthFailureDoesNotBlock проверяет, что 9 неудач не блокируют клиента.
func TestNinthFailureDoesNotBlock(t *testing.T) {
	tracker, _ := newTestTracker(t)

	for i := 0; i < 9; i++ {
		tracker.RecordFailure("192.0.2.1")
	}

	allowed, retryAfter := tracker.CheckAllowed("192.0.2.1")
	if !allowed {
		t.Error("клиент заблокирован после 9 неудач, блокировка ожидалась после 10")
	}
	if retryAfter != 0 {
		t.Errorf("retryAfter = %d, ожидался 0", retryAfter)
	}
}

// TestTenthFailureBlocks проверяет блокировку ровно на 10-й неудаче
// и запись события ip_blocked в журнал аудита.
func TestTenthFailureBlocks(t *testing.T) {
	tracker, auditLog := newTestTracker(t)

	for i := 0; i < 10; i++ {
		tracker.RecordFailure("192.0.2.1")
	}

	allowed, retryAfter := tracker.CheckAllowed("192.0.2.1")
	if allowed {
		t.Fatal("клиент не заблокирован после 10 неудач")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, ожидалось значение в (0, 60]", retryAfter)
	}

	events, err := auditLog.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	blocked := 0
	for _, ev := range events {
		if ev.Category == audit.CategoryIPBlocked && ev.ClientKey == "192.0.2.1" {
			blocked++
		}
	}
	if blocked != 1 {
		t.Errorf("событий ip_blocked = %d, ожидалось ровно 1", blocked)
	}
}

// TestSuccessResetsCounter проверяет, что успех сбрасывает счётчик в 0.
func TestSuccessResetsCounter(t *testing.T) {
	tracker, _ := newTestTracker(t)

	for i := 0; i < 9; i++ {
		tracker.RecordFailure("192.0.2.1")
	}
	tracker.RecordSuccess("192.0.2.1")

	// После сброса 9 новых неудач снова не блокируют
	for i := 0; i < 9; i++ {
		tracker.RecordFailure("192.0.2.1")
	}
	if allowed, _ := tracker.CheckAllowed("192.0.2.1"); !allowed {
		t.Error("клиент заблокирован, счётчик не был сброшен успехом")
	}

	// 10-я добивает
	tracker.RecordFailure("192.0.2.1")
	if allowed, _ := tracker.CheckAllowed("192.0.2.1"); allowed {
		t.Error("клиент не заблокирован на 10-й неудаче после сброса")
	}
}

// TestBlockExpires проверяет снятие блокировки по истечении её срока
// и сброс бюджета неудач.
func TestBlockExpires(t *testing.T) {
	tracker, _ := newTestTracker(t)

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return base }

	for i := 0; i < 10; i++ {
		tracker.RecordFailure("192.0.2.1")
	}
	if allowed, _ := tracker.CheckAllowed("192.0.2.1"); allowed {
		t.Fatal("клиент не заблокирован")
	}

	// За секунду до снятия — всё ещё заблокирован
	tracker.now = func() time.Time { return base.Add(59 * time.Second) }
	if allowed, _ := tracker.CheckAllowed("192.0.2.1"); allowed {
		t.Error("блокировка снята раньше срока")
	}

	// После истечения — разблокирован, бюджет начинается заново
	tracker.now = func() time.Time { return base.Add(61 * time.Second) }
	if allowed, _ := tracker.CheckAllowed("192.0.2.1"); !allowed {
		t.Error("блокировка не снята после истечения срока")
	}

	tracker.RecordFailure("192.0.2.1")
	if allowed, _ := tracker.CheckAllowed("192.0.2.1"); !allowed {
		t.Error("одна неудача после снятия блокировки не должна блокировать повторно")
	}
}

// TestWindowExpiryResetsCount проверяет, что неудачи за пределами окна
// не суммируются с новыми.
func TestWindowExpiryResetsCount(t *testing.T) {
	tracker, _ := newTestTracker(t)

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return base }

	for i := 0; i < 9; i++ {
		tracker.RecordFailure("192.0.2.1")
	}

	// Окно (10m) истекло — старые неудачи сгорают
	tracker.now = func() time.Time { return base.Add(11 * time.Minute) }
	tracker.RecordFailure("192.0.2.1")

	if allowed, _ := tracker.CheckAllowed("192.0.2.1"); !allowed {
		t.Error("клиент заблокирован: неудачи прошлого окна не должны учитываться")
	}
}

// TestIndependentClients проверяет независимость бюджетов разных клиентов.
func TestIndependentClients(t *testing.T) {
	tracker, _ := newTestTracker(t)

	for i := 0; i < 10; i++ {
		tracker.RecordFailure("192.0.2.1")
	}

	if allowed, _ := tracker.CheckAllowed("192.0.2.2"); !allowed {
		t.Error("блокировка одного клиента затронула другого")
	}
}

// TestConcurrentFailures проверяет, что при конкурентных неудачах ни одна
// не теряется и блокировка срабатывает ровно один раз.
func TestConcurrentFailures(t *testing.T) {
	tracker, auditLog := newTestTracker(t)

	const goroutines = 10
	const perGoroutine = 5 // суммарно 50 неудач, порог 10

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				tracker.RecordFailure("192.0.2.1")
			}
		}()
	}
	wg.Wait()

	if allowed, _ := tracker.CheckAllowed("192.0.2.1"); allowed {
		t.Error("клиент не заблокирован после 50 конкурентных неудач")
	}

	events, err := auditLog.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	blocked := 0
	for _, ev := range events {
		if ev.Category == audit.CategoryIPBlocked {
			blocked++
		}
	}
	if blocked != 1 {
		t.Errorf("событий ip_blocked = %d, ожидалось ровно 1 (переход срабатывает единожды)", blocked)
	}
}

// TestLRUCapacityBound проверяет ограничение таблицы по ёмкости.
func TestLRUCapacityBound(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.log"), logger)
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	defer auditLog.Close()

	tracker := NewTracker(10, time.Minute, 10*time.Minute, 8, auditLog, logger)

	for i := 0; i < 100; i++ {
		tracker.RecordFailure(string(rune('a' + i%26)))
	}

	if n := tracker.TrackedClients(); n > 8 {
		t.Errorf("TrackedClients = %d, ёмкость таблицы 8", n)
	}
}
