// Пакет audit — журнал событий безопасности Document Portal.
// Append-only файл в формате JSON Lines: одна запись — одна строка.
// Журнал переживает рестарт процесса; ротация и срок хранения —
// забота внешней инфраструктуры.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category — категория события безопасности.
type Category string

const (
	// CategoryLoginFailed — неудачная попытка входа (email/пароль).
	CategoryLoginFailed Category = "login_failed"
	// CategoryInvalidToken — предъявлен недействительный/просроченный токен.
	CategoryInvalidToken Category = "invalid_token"
	// CategoryUnauthorizedAccess — попытка доступа к чужому документу.
	CategoryUnauthorizedAccess Category = "unauthorized_access"
	// CategoryIPBlocked — клиент заблокирован после превышения порога неудач.
	CategoryIPBlocked Category = "ip_blocked"
	// CategoryUploadRejected — загружаемый файл не прошёл валидацию.
	CategoryUploadRejected Category = "upload_rejected"
)

// Event — запись журнала аудита. Записи не изменяются и не удаляются.
type Event struct {
	// Timestamp — время события (UTC)
	Timestamp time.Time `json:"ts"`
	// Category — категория события
	Category Category `json:"category"`
	// ClientKey — сетевой идентификатор клиента
	ClientKey string `json:"client_key"`
	// SubjectID — идентификатор аутентифицированного пользователя (если известен)
	SubjectID string `json:"subject_id,omitempty"`
	// ResourceID — идентификатор затронутого документа (если применимо)
	ResourceID string `json:"resource_id,omitempty"`
	// Message — человекочитаемое описание
	Message string `json:"message"`
}

// Log — файловый журнал аудита с сериализацией записей.
// Все записи проходят через один мьютекс: порядок событий одного
// клиента в файле совпадает с порядком их возникновения.
type Log struct {
	path   string
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
	// now — источник времени, подменяется в тестах
	now func() time.Time
}

// Open создаёт (или открывает существующий) журнал аудита.
// Директория создаётся при необходимости; доступность на запись
// проверяется сразу, а не при первом событии.
func Open(path string, logger *slog.Logger) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию журнала аудита %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть журнал аудита %s: %w", path, err)
	}

	return &Log{
		path:   path,
		file:   f,
		logger: logger.With(slog.String("component", "audit")),
		now:    time.Now,
	}, nil
}

// Append добавляет событие в журнал.
// Timestamp заполняется здесь (UTC). Событие дублируется в slog
// на уровне Warn — журнал аудита не заменяет операционные логи.
func (l *Log) Append(ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.Timestamp = l.now().UTC()

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("сериализация события аудита: %w", err)
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("запись события аудита: %w", err)
	}

	l.logger.Warn("Событие безопасности",
		slog.String("category", string(ev.Category)),
		slog.String("client_key", ev.ClientKey),
		slog.String("subject_id", ev.SubjectID),
		slog.String("resource_id", ev.ResourceID),
		slog.String("message", ev.Message),
	)

	return nil
}

// ReadAll читает все события из журнала (для диагностики и тестов).
// Некорректные строки пропускаются с предупреждением.
func (l *Log) ReadAll() ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("открытие журнала аудита: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			l.logger.Warn("Пропущена некорректная строка журнала аудита",
				slog.String("error", err.Error()),
			)
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("чтение журнала аудита: %w", err)
	}

	return events, nil
}

// Path возвращает путь к файлу журнала.
func (l *Log) Path() string {
	return l.path
}

// Close закрывает файл журнала.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
