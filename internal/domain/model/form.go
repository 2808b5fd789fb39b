package model

import "time"

// FormDef — определение формы арендатора (реестр арендаторов).
// Хранится в таблице form_defs; site_name — единственный стабильный
// внешний идентификатор арендатора.
type FormDef struct {
	// ID — первичный ключ
	ID int
	// Name — отображаемое имя формы
	Name string
	// SiteName — уникальный slug сайта (URL- и идентификатор-безопасный)
	SiteName string
	// SchemaJSON — JSON-схема формы (поля + тема + политика загрузки)
	SchemaJSON map[string]any
	// CreatedBy — id владельца-администратора (nil если владелец удалён)
	CreatedBy *int
	// SchemaName — детерминированный идентификатор пространства арендатора,
	// выводится из SiteName; именует каталог загрузок
	SchemaName string
	// Description — описание формы
	Description string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}
