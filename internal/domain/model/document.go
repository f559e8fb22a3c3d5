package model

import "time"

// Document — метаданные загруженного документа.
// OwnerID устанавливается исключительно из идентичности, извлечённой
// из проверенного токена, и неизменяем после создания.
type Document struct {
	// ID — уникальный идентификатор документа (UUID v4).
	// Случайные 128-битные идентификаторы не поддаются перебору.
	ID string `json:"id"`

	// OwnerID — идентификатор владельца (User.ID).
	// Не возвращается в API: список всегда отфильтрован по владельцу.
	OwnerID string `json:"-"`

	// OriginalName — имя файла при загрузке (после санитизации)
	OriginalName string `json:"original_name"`

	// StoredName — имя файла на диске (относительно DP_DATA_DIR).
	// Формат: {owner}_{timestamp}_{uuid}_{original}
	StoredName string `json:"stored_name"`

	// Size — размер файла в байтах
	Size int64 `json:"size"`

	// Checksum — SHA-256 хэш содержимого файла
	Checksum string `json:"checksum"`

	// UploadedAt — дата и время загрузки (UTC)
	UploadedAt time.Time `json:"uploaded_at"`
}
