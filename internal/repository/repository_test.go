package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/formly-platform/formly/internal/config"
	"github.com/formly-platform/formly/internal/database"
	"github.com/formly-platform/formly/internal/domain/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("formly_test"),
		postgres.WithUsername("formly"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("FY_DB_HOST", host)
	os.Setenv("FY_DB_PORT", port.Port())
	os.Setenv("FY_DB_NAME", "formly_test")
	os.Setenv("FY_DB_USER", "formly")
	os.Setenv("FY_DB_PASSWORD", "test-password")
	os.Setenv("FY_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// createTestForm создаёт форму-арендатора для тестов заявок и черновиков.
func createTestForm(t *testing.T, pool *pgxpool.Pool, siteName string) *model.FormDef {
	t.Helper()
	repo := NewFormRepository(pool)
	f := &model.FormDef{
		Name:       "Тестовая форма " + siteName,
		SiteName:   siteName,
		SchemaJSON: map[string]any{"fields": []any{map[string]any{"key": "name", "type": "text"}}},
		SchemaName: "s_" + siteName,
	}
	if err := repo.Upsert(ctx(), f); err != nil {
		t.Fatalf("Создание формы: %v", err)
	}
	return f
}

func ctx() context.Context { return context.Background() }

// --- Тесты UserRepository ---

func TestUserCRUD(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewUserRepository(pool)

	u := &model.User{
		Username:     "alice",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Role:         "user",
	}

	// Create
	if err := repo.Create(ctx(), u); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if u.ID == 0 {
		t.Error("ID не установлен после Create")
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// GetByUsername
	got, err := repo.GetByUsername(ctx(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() ошибка: %v", err)
	}
	if got.ID != u.ID || got.Role != "user" {
		t.Errorf("GetByUsername: ID=%d Role=%q", got.ID, got.Role)
	}

	// Повторная регистрация того же username — конфликт
	dup := &model.User{Username: "alice", PasswordHash: "x", Role: "user"}
	if err := repo.Create(ctx(), dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Повторный Create: ожидали ErrConflict, получили: %v", err)
	}

	// UpdatePassword
	if err := repo.UpdatePassword(ctx(), u.ID, "$2a$10$newhash"); err != nil {
		t.Fatalf("UpdatePassword() ошибка: %v", err)
	}
	got2, _ := repo.GetByID(ctx(), u.ID)
	if got2.PasswordHash != "$2a$10$newhash" {
		t.Errorf("PasswordHash = %q после UpdatePassword", got2.PasswordHash)
	}

	// UpdateRole
	if err := repo.UpdateRole(ctx(), u.ID, "admin"); err != nil {
		t.Fatalf("UpdateRole() ошибка: %v", err)
	}
	got3, _ := repo.GetByID(ctx(), u.ID)
	if got3.Role != "admin" {
		t.Errorf("Role = %q после UpdateRole", got3.Role)
	}
	if err := repo.UpdateRole(ctx(), 99999, "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateRole(absent): ожидали ErrNotFound, получили: %v", err)
	}

	// Несуществующий пользователь
	if _, err := repo.GetByUsername(ctx(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByUsername(absent): ожидали ErrNotFound, получили: %v", err)
	}
}

// --- Тесты FormRepository ---

func TestFormUpsertIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewFormRepository(pool)

	f := &model.FormDef{
		Name:       "Анкета",
		SiteName:   "survey-2026",
		SchemaJSON: map[string]any{"fields": []any{}},
		SchemaName: "survey_2026",
	}
	if err := repo.Upsert(ctx(), f); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	firstID := f.ID

	// Повторный upsert того же slug'а — та же строка, новая схема
	f2 := &model.FormDef{
		Name:       "Анкета v2",
		SiteName:   "survey-2026",
		SchemaJSON: map[string]any{"fields": []any{map[string]any{"key": "q1", "type": "text"}}},
		SchemaName: "survey_2026",
	}
	if err := repo.Upsert(ctx(), f2); err != nil {
		t.Fatalf("Повторный Upsert() ошибка: %v", err)
	}
	if f2.ID != firstID {
		t.Errorf("Повторный Upsert вернул id=%d, хотели %d", f2.ID, firstID)
	}

	got, err := repo.GetBySiteName(ctx(), "survey-2026")
	if err != nil {
		t.Fatalf("GetBySiteName() ошибка: %v", err)
	}
	if got.Name != "Анкета v2" {
		t.Errorf("После Upsert: Name = %q, хотели %q", got.Name, "Анкета v2")
	}
	fields, _ := got.SchemaJSON["fields"].([]any)
	if len(fields) != 1 {
		t.Errorf("После Upsert: %d полей схемы, хотели 1", len(fields))
	}
}

func TestFormListAndDelete(t *testing.T) {
	pool := setupTestDB(t)
	users := NewUserRepository(pool)
	forms := NewFormRepository(pool)

	owner := &model.User{Username: "owner", PasswordHash: "x", Role: "user"}
	if err := users.Create(ctx(), owner); err != nil {
		t.Fatalf("Создание пользователя: %v", err)
	}

	for _, slug := range []string{"site-a", "site-b"} {
		f := &model.FormDef{
			Name: slug, SiteName: slug,
			SchemaJSON: map[string]any{"fields": []any{}},
			CreatedBy:  &owner.ID, SchemaName: slug,
		}
		if err := forms.Upsert(ctx(), f); err != nil {
			t.Fatalf("Upsert(%s): %v", slug, err)
		}
	}

	list, err := forms.ListByOwner(ctx(), owner.ID)
	if err != nil {
		t.Fatalf("ListByOwner() ошибка: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListByOwner() вернул %d форм, хотели 2", len(list))
	}
	// Новые первыми
	if list[0].SiteName != "site-b" {
		t.Errorf("Первая форма = %q, хотели site-b", list[0].SiteName)
	}

	latest, err := forms.LatestByOwner(ctx(), owner.ID)
	if err != nil {
		t.Fatalf("LatestByOwner() ошибка: %v", err)
	}
	if latest.SiteName != "site-b" {
		t.Errorf("LatestByOwner = %q, хотели site-b", latest.SiteName)
	}

	if err := forms.Delete(ctx(), list[0].ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := forms.GetBySiteName(ctx(), "site-b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
}

// --- Тесты SubmissionRepository ---

func TestSubmissionLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	form := createTestForm(t, pool, "lifecycle")
	repo := NewSubmissionRepository(pool)

	s := &model.Submission{
		FormID: form.ID,
		Data:   map[string]any{"name": "Иван", "email": "ivan@example.com"},
	}

	// Create — статус по умолчанию pending
	if err := repo.Create(ctx(), s); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if s.Status != model.StatusPending {
		t.Errorf("Status = %q, хотели %q", s.Status, model.StatusPending)
	}

	// GetByID в пределах формы
	got, err := repo.GetByID(ctx(), form.ID, s.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Data["name"] != "Иван" {
		t.Errorf("Data[name] = %v, хотели Иван", got.Data["name"])
	}

	// UpdateReview: pending -> approved + комментарий
	if err := repo.UpdateReview(ctx(), form.ID, s.ID, model.StatusApproved, "всё верно"); err != nil {
		t.Fatalf("UpdateReview() ошибка: %v", err)
	}
	got2, _ := repo.GetByID(ctx(), form.ID, s.ID)
	if got2.Status != model.StatusApproved || got2.ReviewComment != "всё верно" {
		t.Errorf("После UpdateReview: Status=%q Comment=%q", got2.Status, got2.ReviewComment)
	}

	// Заявка чужой формы недоступна
	other := createTestForm(t, pool, "other-site")
	if _, err := repo.GetByID(ctx(), other.ID, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Чужая форма: ожидали ErrNotFound, получили: %v", err)
	}

	// Delete
	if err := repo.Delete(ctx(), form.ID, s.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx(), form.ID, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
}

func TestSubmissionListSearch(t *testing.T) {
	pool := setupTestDB(t)
	form := createTestForm(t, pool, "search")
	repo := NewSubmissionRepository(pool)

	for _, name := range []string{"Анна", "Борис", "Вера"} {
		s := &model.Submission{FormID: form.ID, Data: map[string]any{"name": name}}
		if err := repo.Create(ctx(), s); err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
	}

	// Без фильтра — все, новые первыми
	all, err := repo.List(ctx(), form.ID, "", 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() вернул %d заявок, хотели 3", len(all))
	}
	if all[0].Data["name"] != "Вера" {
		t.Errorf("Первая заявка = %v, хотели Вера", all[0].Data["name"])
	}

	// Подстрочный поиск
	found, err := repo.List(ctx(), form.ID, "Борис", 0)
	if err != nil {
		t.Fatalf("List(q) ошибка: %v", err)
	}
	if len(found) != 1 || found[0].Data["name"] != "Борис" {
		t.Errorf("Поиск вернул %d заявок", len(found))
	}
}

func TestSubmissionCounters(t *testing.T) {
	pool := setupTestDB(t)
	form := createTestForm(t, pool, "counters")
	repo := NewSubmissionRepository(pool)

	for i := 0; i < 3; i++ {
		s := &model.Submission{FormID: form.ID, Data: map[string]any{"n": i}}
		if err := repo.Create(ctx(), s); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if i == 0 {
			if err := repo.UpdateReview(ctx(), form.ID, s.ID, model.StatusApproved, ""); err != nil {
				t.Fatalf("UpdateReview: %v", err)
			}
		}
	}

	byStatus, err := repo.CountByStatus(ctx(), form.ID)
	if err != nil {
		t.Fatalf("CountByStatus() ошибка: %v", err)
	}
	if byStatus[model.StatusPending] != 2 || byStatus[model.StatusApproved] != 1 {
		t.Errorf("CountByStatus = %v", byStatus)
	}

	byDay, err := repo.CountByDay(ctx(), form.ID, 14)
	if err != nil {
		t.Fatalf("CountByDay() ошибка: %v", err)
	}
	today := time.Now().UTC().Format("2006-01-02")
	total := 0
	for _, n := range byDay {
		total += n
	}
	if total != 3 {
		t.Errorf("CountByDay: всего %d заявок (%v), хотели 3; сегодня=%s", total, byDay, today)
	}
}

// --- Тесты DraftRepository ---

func TestDraftUpsert(t *testing.T) {
	pool := setupTestDB(t)
	form := createTestForm(t, pool, "drafts")
	repo := NewDraftRepository(pool)

	d := &model.Draft{
		FormID: form.ID,
		Token:  "tok-123",
		Data:   map[string]any{"name": "Черновик"},
		Files:  map[string][]string{},
	}

	// Upsert (создание)
	if err := repo.Upsert(ctx(), d); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	if d.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен после Upsert")
	}

	// Upsert (обновление по тому же токену)
	d2 := &model.Draft{
		FormID: form.ID,
		Token:  "tok-123",
		Data:   map[string]any{"name": "Черновик v2"},
		Files:  map[string][]string{"photo": {"a.jpg"}},
	}
	if err := repo.Upsert(ctx(), d2); err != nil {
		t.Fatalf("Повторный Upsert() ошибка: %v", err)
	}

	got, err := repo.Get(ctx(), form.ID, "tok-123")
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if got.Data["name"] != "Черновик v2" {
		t.Errorf("После Upsert: Data[name] = %v", got.Data["name"])
	}
	if len(got.Files["photo"]) != 1 {
		t.Errorf("После Upsert: Files = %v", got.Files)
	}

	// Delete
	if err := repo.Delete(ctx(), form.ID, "tok-123"); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.Get(ctx(), form.ID, "tok-123"); !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
}

// --- Каскадное удаление арендатора ---

func TestCascadeDeleteForm(t *testing.T) {
	pool := setupTestDB(t)
	forms := NewFormRepository(pool)
	subs := NewSubmissionRepository(pool)
	drafts := NewDraftRepository(pool)

	form := createTestForm(t, pool, "cascade")

	s := &model.Submission{FormID: form.ID, Data: map[string]any{"x": 1}}
	if err := subs.Create(ctx(), s); err != nil {
		t.Fatalf("Создание заявки: %v", err)
	}
	d := &model.Draft{FormID: form.ID, Token: "t1", Data: map[string]any{}, Files: map[string][]string{}}
	if err := drafts.Upsert(ctx(), d); err != nil {
		t.Fatalf("Создание черновика: %v", err)
	}

	// Удаление формы сносит заявки и черновики каскадом
	if err := forms.Delete(ctx(), form.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}

	if _, err := subs.GetByID(ctx(), form.ID, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Заявка пережила каскад: %v", err)
	}
	if _, err := drafts.Get(ctx(), form.ID, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Черновик пережил каскад: %v", err)
	}
}
