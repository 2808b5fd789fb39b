package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/formly-platform/formly/internal/domain/model"
)

// FormRepository — интерфейс реестра арендаторов (form_defs).
type FormRepository interface {
	// Upsert вставляет или обновляет запись по site_name
	// (insert-or-replace: повторная подача того же slug'а обновляет форму).
	Upsert(ctx context.Context, f *model.FormDef) error
	// GetByID возвращает форму по id.
	GetByID(ctx context.Context, id int) (*model.FormDef, error)
	// GetBySiteName возвращает форму по slug'у.
	GetBySiteName(ctx context.Context, siteName string) (*model.FormDef, error)
	// ListByOwner возвращает формы владельца, новые первыми.
	ListByOwner(ctx context.Context, ownerID int) ([]*model.FormDef, error)
	// ListAll возвращает все формы (консоль super_admin).
	ListAll(ctx context.Context) ([]*model.FormDef, error)
	// LatestByOwner возвращает последнюю созданную форму владельца.
	LatestByOwner(ctx context.Context, ownerID int) (*model.FormDef, error)
	// UpdateSchema заменяет schema_json по slug'у (правки темы).
	UpdateSchema(ctx context.Context, siteName string, schemaJSON map[string]any) error
	// Delete удаляет запись реестра; заявки и черновики арендатора
	// удаляются каскадом в той же транзакции.
	Delete(ctx context.Context, id int) error
}

// formRepo — реализация FormRepository.
type formRepo struct {
	db DBTX
}

// NewFormRepository создаёт репозиторий реестра форм.
func NewFormRepository(db DBTX) FormRepository {
	return &formRepo{db: db}
}

const formColumns = `id, name, site_name, schema_json, created_by, schema_name, COALESCE(description, ''), created_at`

func (r *formRepo) Upsert(ctx context.Context, f *model.FormDef) error {
	query := `
		INSERT INTO form_defs (name, site_name, schema_json, created_by, schema_name, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (site_name) DO UPDATE SET
			name        = EXCLUDED.name,
			schema_json = EXCLUDED.schema_json,
			created_by  = EXCLUDED.created_by,
			schema_name = EXCLUDED.schema_name,
			description = EXCLUDED.description
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		f.Name, f.SiteName, f.SchemaJSON, f.CreatedBy, f.SchemaName, f.Description,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка upsert формы: %w", err)
	}
	return nil
}

func (r *formRepo) GetByID(ctx context.Context, id int) (*model.FormDef, error) {
	query := fmt.Sprintf(`SELECT %s FROM form_defs WHERE id = $1`, formColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *formRepo) GetBySiteName(ctx context.Context, siteName string) (*model.FormDef, error) {
	query := fmt.Sprintf(`SELECT %s FROM form_defs WHERE site_name = $1`, formColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, siteName))
}

func (r *formRepo) ListByOwner(ctx context.Context, ownerID int) ([]*model.FormDef, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM form_defs
		WHERE created_by = $1
		ORDER BY id DESC`, formColumns)

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка форм: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *formRepo) ListAll(ctx context.Context) ([]*model.FormDef, error) {
	query := fmt.Sprintf(`SELECT %s FROM form_defs ORDER BY id DESC`, formColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка форм: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *formRepo) LatestByOwner(ctx context.Context, ownerID int) (*model.FormDef, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM form_defs
		WHERE created_by = $1
		ORDER BY id DESC
		LIMIT 1`, formColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, ownerID))
}

func (r *formRepo) UpdateSchema(ctx context.Context, siteName string, schemaJSON map[string]any) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE form_defs SET schema_json = $2 WHERE site_name = $1`,
		siteName, schemaJSON)
	if err != nil {
		return fmt.Errorf("ошибка обновления схемы: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *formRepo) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM form_defs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления формы: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanOne сканирует одну строку form_defs.
func (r *formRepo) scanOne(row pgx.Row) (*model.FormDef, error) {
	f := &model.FormDef{}
	err := row.Scan(
		&f.ID, &f.Name, &f.SiteName, &f.SchemaJSON,
		&f.CreatedBy, &f.SchemaName, &f.Description, &f.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования формы: %w", err)
	}
	return f, nil
}

// scanMany сканирует все строки результата.
func (r *formRepo) scanMany(rows pgx.Rows) ([]*model.FormDef, error) {
	var result []*model.FormDef
	for rows.Next() {
		f := &model.FormDef{}
		if err := rows.Scan(
			&f.ID, &f.Name, &f.SiteName, &f.SchemaJSON,
			&f.CreatedBy, &f.SchemaName, &f.Description, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования формы: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}
