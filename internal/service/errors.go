// Пакет service — бизнес-логика Document Portal: вход пользователей
// и операции с документами с обязательной проверкой владения.
package service

import "fmt"

// Error — ошибка сервисного слоя с HTTP-кодом и машиночитаемым кодом
// для ответа клиенту.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
