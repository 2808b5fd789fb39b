package model

import "time"

// Статусы заявки — закрытый enum рабочего процесса рецензирования.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ValidStatus проверяет принадлежность строки enum статусов.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Submission — одна заполненная анкета арендатора.
// Хранится в общей таблице submissions, ключ арендатора — FormID.
type Submission struct {
	// ID — первичный ключ
	ID int
	// FormID — арендатор (form_defs.id)
	FormID int
	// UserID — id отправителя, если он был аутентифицирован (опционально)
	UserID *int
	// Data — плоский JSON-объект по ключам полей схемы;
	// файловые поля содержат списки URL
	Data map[string]any
	// Status — статус рецензирования (pending, approved, rejected)
	Status string
	// ReviewComment — комментарий рецензента
	ReviewComment string
	// CreatedAt — время подачи
	CreatedAt time.Time
}
