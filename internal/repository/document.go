package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/godocportal/internal/domain/model"
)

// documentColumns — список столбцов таблицы documents для SELECT-запросов.
const documentColumns = `id, owner_id, original_name, stored_name, size, checksum, uploaded_at`

// DocumentRepository — интерфейс доступа к метаданным документов.
//
// Контракт с вызывающим кодом: ListByOwner никогда не вызывается
// с клиентским фильтром владельца — ownerID всегда берётся из
// проверенного токена; для единичных документов владение проверяется
// после загрузки записи, в сервисном слое.
type DocumentRepository interface {
	// Insert сохраняет метаданные нового документа.
	Insert(ctx context.Context, doc *model.Document) error
	// GetByID возвращает документ по идентификатору.
	GetByID(ctx context.Context, id string) (*model.Document, error)
	// ListByOwner возвращает документы владельца, новые первыми.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Document, error)
}

// documentRepo — реализация DocumentRepository через pgx.
type documentRepo struct {
	db DBTX
}

// NewDocumentRepository создаёт репозиторий документов.
func NewDocumentRepository(db DBTX) DocumentRepository {
	return &documentRepo{db: db}
}

// Insert сохраняет метаданные документа.
func (r *documentRepo) Insert(ctx context.Context, doc *model.Document) error {
	query := `INSERT INTO documents (id, owner_id, original_name, stored_name, size, checksum, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		doc.ID, doc.OwnerID, doc.OriginalName, doc.StoredName, doc.Size, doc.Checksum, doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения документа: %w", err)
	}
	return nil
}

// GetByID возвращает документ по идентификатору или ErrNotFound.
func (r *documentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)

	d := &model.Document{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.OwnerID, &d.OriginalName, &d.StoredName, &d.Size, &d.Checksum, &d.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения документа: %w", err)
	}
	return d, nil
}

// ListByOwner возвращает документы владельца, новые первыми.
func (r *documentRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE owner_id = $1 ORDER BY uploaded_at DESC`, documentColumns)

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса документов: %w", err)
	}
	defer rows.Close()

	var result []*model.Document
	for rows.Next() {
		d := &model.Document{}
		if err := rows.Scan(
			&d.ID, &d.OwnerID, &d.OriginalName, &d.StoredName, &d.Size, &d.Checksum, &d.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования документа: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}
