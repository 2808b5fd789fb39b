// Пакет model — доменные модели Formly.
package model

import "time"

// User — учётная запись в локальном хранилище учётных данных.
// Хранится в таблице users.
type User struct {
	// ID — первичный ключ
	ID int
	// Username — уникальное имя пользователя
	Username string
	// PasswordHash — bcrypt-хеш пароля
	PasswordHash string
	// Role — роль (user, admin, super_admin)
	Role string
	// CreatedAt — время регистрации
	CreatedAt time.Time
}
