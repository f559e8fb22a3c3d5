// Пакет validate — проверка содержимого загружаемых документов.
// Портал принимает только PDF. Три независимые проверки — заявленный
// MIME-тип, сигнатура первых байт и расширение имени файла — должны
// пройти все: MIME и имя файла контролируются клиентом, и лишь
// сигнатура смотрит в фактическое содержимое, но совокупность
// проверок повышает стоимость обхода.
package validate

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// PDFContentType — единственный допустимый заявленный MIME-тип.
const PDFContentType = "application/pdf"

// pdfSignature — сигнатура формата PDF (первые 4 байта файла).
var pdfSignature = []byte("%PDF")

// Reason — тег непройденной проверки. Используется в журнале аудита;
// клиенту причина не детализируется.
type Reason string

const (
	// ReasonMimeMismatch — заявленный MIME-тип не application/pdf.
	ReasonMimeMismatch Reason = "mime_mismatch"
	// ReasonBadSignature — первые байты файла не являются сигнатурой PDF.
	ReasonBadSignature Reason = "bad_signature"
	// ReasonBadExtension — имя файла не оканчивается на .pdf.
	ReasonBadExtension Reason = "bad_extension"
)

// RejectedError — отказ валидации с тегом непройденной проверки.
type RejectedError struct {
	Reason Reason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("файл отклонён валидацией: %s", e.Reason)
}

// AsRejected извлекает RejectedError из цепочки ошибок.
func AsRejected(err error) (*RejectedError, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected, true
	}
	return nil, false
}

// CheckPDF проверяет загружаемый файл. head — первые байты содержимого
// (достаточно 4), declaredType — MIME-тип из multipart-заголовка,
// filename — имя файла, заявленное клиентом.
//
// Чистая функция: ничего не сохраняет и не логирует. Возвращает nil
// при приёме или *RejectedError с тегом первой непройденной проверки.
func CheckPDF(head []byte, declaredType, filename string) error {
	// 1. Заявленный MIME-тип — точное совпадение, включая регистр
	if declaredType != PDFContentType {
		return &RejectedError{Reason: ReasonMimeMismatch}
	}

	// 2. Сигнатура содержимого
	if len(head) < len(pdfSignature) || !bytes.Equal(head[:len(pdfSignature)], pdfSignature) {
		return &RejectedError{Reason: ReasonBadSignature}
	}

	// 3. Расширение имени файла
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return &RejectedError{Reason: ReasonBadExtension}
	}

	return nil
}
