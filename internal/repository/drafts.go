package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/formly-platform/formly/internal/domain/model"
)

// DraftRepository — интерфейс хранилища черновиков.
type DraftRepository interface {
	// Upsert вставляет или обновляет черновик по паре (form_id, token).
	Upsert(ctx context.Context, d *model.Draft) error
	// Get возвращает черновик по паре (form_id, token).
	Get(ctx context.Context, formID int, token string) (*model.Draft, error)
	// Delete удаляет черновик (после успешной подачи формы).
	Delete(ctx context.Context, formID int, token string) error
}

// draftRepo — реализация DraftRepository.
type draftRepo struct {
	db DBTX
}

// NewDraftRepository создаёт репозиторий черновиков.
func NewDraftRepository(db DBTX) DraftRepository {
	return &draftRepo{db: db}
}

func (r *draftRepo) Upsert(ctx context.Context, d *model.Draft) error {
	query := `
		INSERT INTO drafts (form_id, token, data, files, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (form_id, token) DO UPDATE SET
			data       = EXCLUDED.data,
			files      = EXCLUDED.files,
			updated_at = now()
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query, d.FormID, d.Token, d.Data, d.Files).
		Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка upsert черновика: %w", err)
	}
	return nil
}

func (r *draftRepo) Get(ctx context.Context, formID int, token string) (*model.Draft, error) {
	d := &model.Draft{}
	err := r.db.QueryRow(ctx, `
		SELECT form_id, token, data, files, created_at, updated_at
		FROM drafts
		WHERE form_id = $1 AND token = $2`,
		formID, token).
		Scan(&d.FormID, &d.Token, &d.Data, &d.Files, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения черновика: %w", err)
	}
	return d, nil
}

func (r *draftRepo) Delete(ctx context.Context, formID int, token string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM drafts WHERE form_id = $1 AND token = $2`,
		formID, token)
	if err != nil {
		return fmt.Errorf("ошибка удаления черновика: %w", err)
	}
	return nil
}
