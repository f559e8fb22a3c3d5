// Пакет model — доменные модели Document Portal.
package model

import "time"

// User — зарегистрированный пользователь портала.
// Запись неизменяема после создания; управление пользователями
// выполняется административным путём вне портала.
type User struct {
	// ID — уникальный идентификатор пользователя (UUID v4)
	ID string
	// Email — адрес электронной почты (уникальный)
	Email string
	// PasswordHash — bcrypt-хэш пароля. Никогда не сериализуется в API.
	PasswordHash string
	// CreatedAt — дата регистрации (UTC)
	CreatedAt time.Time
}
