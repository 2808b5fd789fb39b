// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — недостаточно прав для операции.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrUnauthorized — неверные учётные данные.
	ErrUnauthorized = errors.New("неверное имя пользователя или пароль")
	// ErrInvalidStatus — недопустимый статус модерации.
	ErrInvalidStatus = errors.New("недопустимый статус: допустимые значения — pending, approved, rejected")
	// ErrNoRecipient — в данных заявки нет адреса получателя.
	ErrNoRecipient = errors.New("в заявке не найден адрес получателя")
	// ErrSMTPUnavailable — SMTP-сервер не настроен или недоступен.
	ErrSMTPUnavailable = errors.New("SMTP-сервер недоступен")
)
