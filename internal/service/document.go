package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/godocportal/internal/api/errors"
	"github.com/bigkaa/godocportal/internal/audit"
	"github.com/bigkaa/godocportal/internal/auth"
	"github.com/bigkaa/godocportal/internal/domain/model"
	"github.com/bigkaa/godocportal/internal/ratelimit"
	"github.com/bigkaa/godocportal/internal/repository"
	"github.com/bigkaa/godocportal/internal/storage/filestore"
	"github.com/bigkaa/godocportal/internal/validate"
)

// Prometheus-метрики документных операций.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dp_uploads_total",
		Help: "Общее количество загрузок документов.",
	}, []string{"result"})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dp_downloads_total",
		Help: "Общее количество запросов на скачивание документов.",
	}, []string{"result"})
)

// DocumentService — операции с документами.
// Каждая операция получает проверенную идентичность из токена;
// владение сверяется здесь, после загрузки записи из хранилища.
type DocumentService struct {
	docs     repository.DocumentRepository
	store    *filestore.FileStore
	tracker  *ratelimit.Tracker
	auditLog *audit.Log
	logger   *slog.Logger
	// now — источник времени, подменяется в тестах
	now func() time.Time
}

// NewDocumentService создаёт сервис документов.
func NewDocumentService(
	docs repository.DocumentRepository,
	store *filestore.FileStore,
	tracker *ratelimit.Tracker,
	auditLog *audit.Log,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		docs:     docs,
		store:    store,
		tracker:  tracker,
		auditLog: auditLog,
		logger:   logger.With(slog.String("component", "document_service")),
		now:      time.Now,
	}
}

// UploadParams — параметры загрузки документа.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalFilename — имя файла, заявленное клиентом
	OriginalFilename string
	// DeclaredType — MIME-тип из multipart-заголовка
	DeclaredType string
}

// Upload валидирует и сохраняет документ.
//
// Владелец сохраняемого документа — всегда идентичность из проверенного
// токена; никакое клиентское поле на это не влияет. Отклонённый файл
// учитывается трекером и попадает в журнал аудита; причина отказа
// клиенту не детализируется.
func (s *DocumentService) Upload(ctx context.Context, sub *auth.Subject, clientKey string, params UploadParams) (*model.Document, *Error) {
	// Читаем первые байты для проверки сигнатуры
	head := make([]byte, 4)
	n, err := io.ReadFull(params.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		s.logger.Error("Ошибка чтения загружаемого файла", slog.String("error", err.Error()))
		return nil, &Error{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка",
		}
	}

	if err := validate.CheckPDF(head[:n], params.DeclaredType, params.OriginalFilename); err != nil {
		reason := "unknown"
		if rejected, ok := validate.AsRejected(err); ok {
			reason = string(rejected.Reason)
		}

		s.tracker.RecordFailure(clientKey)
		if auditErr := s.auditLog.Append(audit.Event{
			Category:  audit.CategoryUploadRejected,
			ClientKey: clientKey,
			SubjectID: sub.ID,
			Message:   fmt.Sprintf("файл %q отклонён валидацией: %s", params.OriginalFilename, reason),
		}); auditErr != nil {
			s.logger.Error("Не удалось записать отказ загрузки в аудит", slog.String("error", auditErr.Error()))
		}
		uploadsTotal.WithLabelValues("rejected").Inc()

		return nil, &Error{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeValidationError,
			Message:    "Допускаются только PDF-файлы",
		}
	}

	// Возвращаем прочитанные байты в начало потока
	content := io.MultiReader(bytes.NewReader(head[:n]), params.Reader)

	saved, err := s.store.Save(content, params.OriginalFilename, sub.ID)
	if err != nil {
		s.logger.Error("Ошибка сохранения файла на диск", slog.String("error", err.Error()))
		return nil, &Error{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка",
		}
	}

	doc := &model.Document{
		ID:           uuid.New().String(),
		OwnerID:      sub.ID, // только из токена, безусловно
		OriginalName: filestore.SafeName(params.OriginalFilename),
		StoredName:   saved.StoredName,
		Size:         saved.Size,
		Checksum:     saved.Checksum,
		UploadedAt:   s.now().UTC(),
	}

	if err := s.docs.Insert(ctx, doc); err != nil {
		// Метаданные не сохранились — файл на диске осиротел, убираем
		if delErr := s.store.Delete(saved.StoredName); delErr != nil {
			s.logger.Error("Не удалось удалить осиротевший файл",
				slog.String("stored_name", saved.StoredName),
				slog.String("error", delErr.Error()),
			)
		}
		s.logger.Error("Ошибка сохранения метаданных документа", slog.String("error", err.Error()))
		return nil, &Error{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка",
		}
	}

	s.tracker.RecordSuccess(clientKey)
	uploadsTotal.WithLabelValues("accepted").Inc()

	s.logger.Info("Документ загружен",
		slog.String("document_id", doc.ID),
		slog.String("owner_id", doc.OwnerID),
		slog.Int64("size", doc.Size),
	)

	return doc, nil
}

// List возвращает документы владельца.
//
// Фильтр владельца всегда строится из проверенного токена: клиентского
// параметра владельца не существует ни на одном пути кода.
func (s *DocumentService) List(ctx context.Context, sub *auth.Subject, clientKey string) ([]*model.Document, *Error) {
	docs, err := s.docs.ListByOwner(ctx, sub.ID)
	if err != nil {
		s.logger.Error("Ошибка получения списка документов", slog.String("error", err.Error()))
		return nil, &Error{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка",
		}
	}

	s.tracker.RecordSuccess(clientKey)

	return docs, nil
}

// notFoundError — единый ответ для отсутствующего и чужого документа.
// Различие в ответе позволило бы проверять существование чужих
// идентификаторов (см. журнал аудита для фактической причины).
func notFoundError() *Error {
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       apierrors.CodeNotFound,
		Message:    "Документ не найден",
	}
}

// Download возвращает метаданные документа и открытый файл.
// Вызывающий код обязан закрыть файл.
//
// Владение проверяется после загрузки записи; несовпадение владельца
// неотличимо снаружи от отсутствия документа.
func (s *DocumentService) Download(ctx context.Context, sub *auth.Subject, clientKey, documentID string) (*model.Document, *os.File, *Error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.tracker.RecordFailure(clientKey)
			if auditErr := s.auditLog.Append(audit.Event{
				Category:   audit.CategoryUnauthorizedAccess,
				ClientKey:  clientKey,
				SubjectID:  sub.ID,
				ResourceID: documentID,
				Message:    "запрос несуществующего документа",
			}); auditErr != nil {
				s.logger.Error("Не удалось записать событие в аудит", slog.String("error", auditErr.Error()))
			}
			downloadsTotal.WithLabelValues("not_found").Inc()
			return nil, nil, notFoundError()
		}

		s.logger.Error("Ошибка чтения документа", slog.String("error", err.Error()))
		return nil, nil, &Error{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка",
		}
	}

	if doc.OwnerID != sub.ID {
		s.tracker.RecordFailure(clientKey)
		if auditErr := s.auditLog.Append(audit.Event{
			Category:   audit.CategoryUnauthorizedAccess,
			ClientKey:  clientKey,
			SubjectID:  sub.ID,
			ResourceID: doc.ID,
			Message:    "попытка скачивания чужого документа",
		}); auditErr != nil {
			s.logger.Error("Не удалось записать событие в аудит", slog.String("error", auditErr.Error()))
		}
		downloadsTotal.WithLabelValues("forbidden").Inc()

		// Ответ идентичен отсутствию документа
		return nil, nil, notFoundError()
	}

	f, err := s.store.Open(doc.StoredName)
	if err != nil {
		// Метаданные есть, файла нет — рассинхронизация хранилища,
		// внутренний сбой, а не неудача клиента
		s.logger.Error("Файл документа отсутствует на диске",
			slog.String("document_id", doc.ID),
			slog.String("stored_name", doc.StoredName),
			slog.String("error", err.Error()),
		)
		return nil, nil, &Error{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка",
		}
	}

	s.tracker.RecordSuccess(clientKey)
	downloadsTotal.WithLabelValues("ok").Inc()

	return doc, f, nil
}
