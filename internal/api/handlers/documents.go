// documents.go — HTTP handlers операций с документами:
// Upload, List, Download.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/godocportal/internal/api/errors"
	"github.com/bigkaa/godocportal/internal/api/middleware"
	"github.com/bigkaa/godocportal/internal/domain/model"
	"github.com/bigkaa/godocportal/internal/service"
)

// DocumentsHandler — обработчик документных endpoints.
// Все маршруты проходят через Guard: идентичность берётся из контекста.
type DocumentsHandler struct {
	docSvc        *service.DocumentService
	maxUploadSize int64
}

// NewDocumentsHandler создаёт обработчик документных endpoints.
func NewDocumentsHandler(docSvc *service.DocumentService, maxUploadSize int64) *DocumentsHandler {
	return &DocumentsHandler{
		docSvc:        docSvc,
		maxUploadSize: maxUploadSize,
	}
}

// Upload обрабатывает POST /api/documents/upload.
// Multipart form: file (обязательно). Размер тела ограничен
// MaxBytesReader — превышение даёт 413 до чтения файла целиком.
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sub := middleware.SubjectFromContext(r.Context())
	if sub == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	// Лимит на всё тело запроса с запасом на multipart-заголовки
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+(1<<20))

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Файл превышает лимит %d байт", h.maxUploadSize))
			return
		}
		apierrors.ValidationError(w, "Ошибка разбора multipart: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		apierrors.FileTooLarge(w, fmt.Sprintf("Файл превышает лимит %d байт", h.maxUploadSize))
		return
	}

	doc, svcErr := h.docSvc.Upload(r.Context(), sub, middleware.ClientKey(r), service.UploadParams{
		Reader:           file,
		OriginalFilename: header.Filename,
		DeclaredType:     header.Header.Get("Content-Type"),
	})
	if svcErr != nil {
		apierrors.WriteError(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(doc)
}

// documentListResponse — тело ответа GET /api/documents.
type documentListResponse struct {
	Items []*model.Document `json:"items"`
	Total int               `json:"total"`
}

// List обрабатывает GET /api/documents.
// Возвращает только документы владельца токена.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	sub := middleware.SubjectFromContext(r.Context())
	if sub == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	docs, svcErr := h.docSvc.List(r.Context(), sub, middleware.ClientKey(r))
	if svcErr != nil {
		apierrors.WriteError(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	if docs == nil {
		docs = []*model.Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(documentListResponse{
		Items: docs,
		Total: len(docs),
	})
}

// Download обрабатывает GET /api/documents/{document_id}/download.
// Отдаёт файл как attachment; чужой документ неотличим от отсутствующего.
func (h *DocumentsHandler) Download(w http.ResponseWriter, r *http.Request) {
	sub := middleware.SubjectFromContext(r.Context())
	if sub == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	documentID := chi.URLParam(r, "document_id")
	if documentID == "" {
		apierrors.ValidationError(w, "Идентификатор документа обязателен")
		return
	}

	doc, f, svcErr := h.docSvc.Download(r.Context(), sub, middleware.ClientKey(r), documentID)
	if svcErr != nil {
		apierrors.WriteError(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.OriginalName))

	// Content-Length, диапазоны и кеширующие заголовки берёт на себя ServeContent
	http.ServeContent(w, r, doc.OriginalName, doc.UploadedAt, f)
}
