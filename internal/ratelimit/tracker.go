// Пакет ratelimit — учёт неудачных попыток по клиентам и временная
// блокировка после превышения порога.
//
// Ключ клиента — сетевой адрес источника. Клиенты за общим NAT/прокси
// делят один бюджет неудач; это задокументированное ограничение схемы,
// а не дефект.
package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/godocportal/internal/audit"
)

// Prometheus-метрики трекера.
var (
	failuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dp_auth_failures_total",
		Help: "Общее количество зафиксированных неудачных попыток.",
	})
	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dp_blocks_total",
		Help: "Общее количество срабатываний блокировки клиентов.",
	})
)

// clientRecord — счётчик неудач одного клиента.
type clientRecord struct {
	// count — количество неудач в текущем окне
	count int
	// windowStart — начало текущего окна подсчёта
	windowStart time.Time
	// blockedUntil — момент снятия блокировки (нулевое время = не заблокирован)
	blockedUntil time.Time
}

// Tracker — таблица счётчиков неудач с блокировкой по порогу.
// Таблица — expirable LRU: записи бездействующих клиентов вытесняются
// по TTL без фонового sweeper'а, объём памяти ограничен сверху.
// Все изменения — под одним мьютексом: конкурирующие неудачи одного
// клиента не могут проскочить проверку порога (check-then-act).
type Tracker struct {
	mu      sync.Mutex
	records *expirable.LRU[string, *clientRecord]

	threshold     int
	blockDuration time.Duration
	window        time.Duration

	auditLog *audit.Log
	logger   *slog.Logger
	// now — источник времени, подменяется в тестах
	now func() time.Time
}

// NewTracker создаёт трекер неудачных попыток.
// threshold — количество неудач в окне window, после которого клиент
// блокируется на blockDuration. maxClients — ёмкость таблицы (LRU).
func NewTracker(threshold int, blockDuration, window time.Duration, maxClients int, auditLog *audit.Log, logger *slog.Logger) *Tracker {
	// TTL записи покрывает и окно подсчёта, и длительность блокировки:
	// запись заблокированного клиента не может быть вытеснена по TTL
	// раньше снятия блокировки.
	ttl := window + blockDuration

	return &Tracker{
		records:       expirable.NewLRU[string, *clientRecord](maxClients, nil, ttl),
		threshold:     threshold,
		blockDuration: blockDuration,
		window:        window,
		auditLog:      auditLog,
		logger:        logger.With(slog.String("component", "ratelimit")),
		now:           time.Now,
	}
}

// CheckAllowed сообщает, разрешено ли обслуживать запросы клиента.
// Для заблокированного клиента возвращает (false, секунды до снятия
// блокировки, всегда > 0). Истёкшая блокировка снимается лениво:
// запись клиента удаляется, бюджет неудач начинается заново.
func (t *Tracker) CheckAllowed(clientKey string) (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records.Get(clientKey)
	if !ok || rec.blockedUntil.IsZero() {
		return true, 0
	}

	now := t.now()
	if now.Before(rec.blockedUntil) {
		retryAfter := int(math.Ceil(rec.blockedUntil.Sub(now).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	// Блокировка истекла — чистый лист
	t.records.Remove(clientKey)
	return true, 0
}

// RecordFailure фиксирует неудачную попытку клиента.
// При достижении порога внутри окна устанавливает блокировку и — не
// отпуская мьютекс — пишет событие ip_blocked в журнал аудита: событие
// попадает в журнал атомарно со вступлением блокировки в силу.
func (t *Tracker) RecordFailure(clientKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	rec, ok := t.records.Get(clientKey)
	if !ok || now.Sub(rec.windowStart) >= t.window {
		rec = &clientRecord{windowStart: now}
	}

	rec.count++
	failuresTotal.Inc()

	if rec.count >= t.threshold && rec.blockedUntil.IsZero() {
		rec.blockedUntil = now.Add(t.blockDuration)
		blocksTotal.Inc()

		if err := t.auditLog.Append(audit.Event{
			Category:  audit.CategoryIPBlocked,
			ClientKey: clientKey,
			Message:   fmt.Sprintf("клиент заблокирован после %d неудачных попыток на %s", rec.count, t.blockDuration),
		}); err != nil {
			t.logger.Error("Не удалось записать событие блокировки в аудит",
				slog.String("client_key", clientKey),
				slog.String("error", err.Error()),
			)
		}

		t.logger.Warn("Клиент заблокирован",
			slog.String("client_key", clientKey),
			slog.Int("failures", rec.count),
			slog.Time("blocked_until", rec.blockedUntil),
		)
	}

	// Add обновляет TTL записи в LRU
	t.records.Add(clientKey, rec)
}

// RecordSuccess сбрасывает счётчик неудач клиента.
// Успешные авторизованные запросы не накапливаются в сторону блокировки.
func (t *Tracker) RecordSuccess(clientKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records.Remove(clientKey)
}

// TrackedClients возвращает количество клиентов в таблице (для диагностики).
func (t *Tracker) TrackedClients() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.records.Len()
}
