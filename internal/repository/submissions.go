package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/formly-platform/formly/internal/domain/model"
)

// Пределы выборок для консоли и экспорта. Консоль показывает последние
// записи, экспорт и графики сканируют более глубокую историю.
const (
	ListLimitDefault = 500
	ListLimitExport  = 5000
)

// SubmissionRepository — интерфейс хранилища заявок.
type SubmissionRepository interface {
	// Create вставляет заявку в статусе pending.
	Create(ctx context.Context, s *model.Submission) error
	// GetByID возвращает заявку в пределах указанной формы.
	GetByID(ctx context.Context, formID, id int) (*model.Submission, error)
	// List возвращает заявки формы, новые первыми; q — подстрочный
	// поиск по сериализованным данным (пустая строка — без фильтра).
	List(ctx context.Context, formID int, q string, limit int) ([]*model.Submission, error)
	// UpdateReview меняет статус и комментарий модератора.
	UpdateReview(ctx context.Context, formID, id int, status, comment string) error
	// Delete удаляет заявку в пределах формы.
	Delete(ctx context.Context, formID, id int) error
	// CountByDay возвращает количество заявок по дням за период.
	CountByDay(ctx context.Context, formID int, days int) (map[string]int, error)
	// CountByStatus возвращает количество заявок по статусам.
	CountByStatus(ctx context.Context, formID int) (map[string]int, error)
}

// submissionRepo — реализация SubmissionRepository.
type submissionRepo struct {
	db DBTX
}

// NewSubmissionRepository создаёт репозиторий заявок.
func NewSubmissionRepository(db DBTX) SubmissionRepository {
	return &submissionRepo{db: db}
}

const submissionColumns = `id, form_id, user_id, data, status, COALESCE(review_comment, ''), created_at`

func (r *submissionRepo) Create(ctx context.Context, s *model.Submission) error {
	query := `
		INSERT INTO submissions (form_id, user_id, data, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	if s.Status == "" {
		s.Status = model.StatusPending
	}
	err := r.db.QueryRow(ctx, query, s.FormID, s.UserID, s.Data, s.Status).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return nil
}

func (r *submissionRepo) GetByID(ctx context.Context, formID, id int) (*model.Submission, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM submissions
		WHERE form_id = $1 AND id = $2`, submissionColumns)

	s := &model.Submission{}
	err := r.db.QueryRow(ctx, query, formID, id).Scan(
		&s.ID, &s.FormID, &s.UserID, &s.Data,
		&s.Status, &s.ReviewComment, &s.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return s, nil
}

func (r *submissionRepo) List(ctx context.Context, formID int, q string, limit int) ([]*model.Submission, error) {
	if limit <= 0 {
		limit = ListLimitDefault
	}

	var rows pgx.Rows
	var err error
	if q != "" {
		query := fmt.Sprintf(`
			SELECT %s FROM submissions
			WHERE form_id = $1 AND data::text ILIKE $2
			ORDER BY id DESC
			LIMIT $3`, submissionColumns)
		rows, err = r.db.Query(ctx, query, formID, "%"+q+"%", limit)
	} else {
		query := fmt.Sprintf(`
			SELECT %s FROM submissions
			WHERE form_id = $1
			ORDER BY id DESC
			LIMIT $2`, submissionColumns)
		rows, err = r.db.Query(ctx, query, formID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	var result []*model.Submission
	for rows.Next() {
		s := &model.Submission{}
		if err := rows.Scan(
			&s.ID, &s.FormID, &s.UserID, &s.Data,
			&s.Status, &s.ReviewComment, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *submissionRepo) UpdateReview(ctx context.Context, formID, id int, status, comment string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE submissions
		SET status = $3, review_comment = $4
		WHERE form_id = $1 AND id = $2`,
		formID, id, status, comment)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *submissionRepo) Delete(ctx context.Context, formID, id int) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM submissions WHERE form_id = $1 AND id = $2`,
		formID, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *submissionRepo) CountByDay(ctx context.Context, formID int, days int) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT to_char(created_at::date, 'YYYY-MM-DD'), COUNT(*)
		FROM submissions
		WHERE form_id = $1 AND created_at >= now() - make_interval(days => $2)
		GROUP BY created_at::date`,
		formID, days)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта заявок по дням: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования счётчика: %w", err)
		}
		result[day] = n
	}
	return result, rows.Err()
}

func (r *submissionRepo) CountByStatus(ctx context.Context, formID int) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*)
		FROM submissions
		WHERE form_id = $1
		GROUP BY status`,
		formID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта заявок по статусам: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования счётчика: %w", err)
		}
		result[status] = n
	}
	return result, rows.Err()
}
