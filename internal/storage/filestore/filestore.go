// Пакет filestore — операции с файлами документов на диске.
// Streaming-запись с подсчётом SHA-256 на лету, чтение и удаление.
// Имена файлов на диске генерируются сервером: клиентские имена
// участвуют только после санитизации.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore — управление файлами документов на диске.
type FileStore struct {
	// dataDir — корневая директория хранения документов (DP_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения документа на диск.
type SaveResult struct {
	// StoredName — имя файла в dataDir
	StoredName string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
}

// New создаёт новый FileStore. Проверяет и создаёт директорию
// если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	// Проверяем доступность на запись сразу, а не при первой загрузке
	testFile := filepath.Join(dataDir, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o640); err != nil {
		return nil, fmt.Errorf("директория данных %s недоступна для записи: %w", dataDir, err)
	}
	os.Remove(testFile)

	return &FileStore{dataDir: dataDir}, nil
}

// Save записывает данные из reader на диск с подсчётом SHA-256 на лету.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) Save(reader io.Reader, originalFilename, ownerID string) (*SaveResult, error) {
	storedName := generateStoredName(originalFilename, ownerID)
	fullPath := filepath.Join(fs.dataDir, storedName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StoredName: storedName,
		Size:       size,
		Checksum:   hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает файл документа для чтения.
// storedName — имя файла в dataDir. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(storedName string) (*os.File, error) {
	f, err := os.Open(filepath.Join(fs.dataDir, storedName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", storedName)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storedName, err)
	}

	return f, nil
}

// Delete удаляет файл документа с диска.
// Возвращает nil если файл уже не существует.
func (fs *FileStore) Delete(storedName string) error {
	err := os.Remove(filepath.Join(fs.dataDir, storedName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storedName, err)
	}
	return nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// SafeName возвращает санитизированное имя файла для хранения
// в метаданных документа: только буквы, цифры, точка, дефис
// и подчёркивание; без разделителей пути.
func SafeName(filename string) string {
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filepath.Base(filename), ext)

	name = sanitize(name)
	if name == "" {
		name = "document"
	}
	if len(name) > 100 {
		name = name[:100]
	}

	return name + strings.ToLower(sanitizeExt(ext))
}

// generateStoredName генерирует имя файла для хранения на диске.
// Формат: {owner}_{timestamp}_{uuid}_{name}.{ext}
// Пример: 7f3a1b_20260830150405_a1b2c3d4_report.pdf
func generateStoredName(originalFilename, ownerID string) string {
	safe := SafeName(originalFilename)

	owner := sanitize(ownerID)
	if len(owner) > 8 {
		owner = owner[:8]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8] // короткий UUID против коллизий имён

	return fmt.Sprintf("%s_%s_%s_%s", owner, ts, uid, safe)
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			result.WriteRune(r)
		}
	}
	return result.String()
}

// sanitizeExt санитизирует расширение файла, сохраняя ведущую точку.
func sanitizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	cleaned := sanitize(strings.TrimPrefix(ext, "."))
	if cleaned == "" {
		return ""
	}
	return "." + cleaned
}
