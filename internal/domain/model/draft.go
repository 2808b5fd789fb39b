package model

import "time"

// Draft — возобновляемый черновик публичной анкеты.
// Upsert по токену; жизненный цикл независим от Submission.
type Draft struct {
	// FormID — арендатор (form_defs.id)
	FormID int
	// Token — клиентский токен черновика (первичный ключ вместе с FormID)
	Token string
	// Data — частично заполненные нефайловые поля
	Data map[string]any
	// Files — карта поле → список URL уже загруженных файлов
	Files map[string][]string
	// CreatedAt — время создания черновика
	CreatedAt time.Time
	// UpdatedAt — время последнего сохранения
	UpdatedAt time.Time
}
