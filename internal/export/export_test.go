package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Parse(map[string]any{
		"fields": []any{
			map[string]any{"key": "name", "type": "text", "label": "姓名"},
			map[string]any{"key": "phone", "type": "tel", "label": "电话"},
			map[string]any{"key": "tags", "type": "checkbox", "label": "标签", "options": []any{"a", "b"}},
		},
	})
	if err != nil {
		t.Fatalf("schema.Parse: %v", err)
	}
	return sch
}

func testSubmission(id int, data map[string]any) *model.Submission {
	return &model.Submission{
		ID:        id,
		FormID:    1,
		Data:      data,
		Status:    model.StatusPending,
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteSubmissionExcel(t *testing.T) {
	sub := testSubmission(7, map[string]any{
		"name":  "Иван",
		"phone": "79001234567",
		"tags":  []any{"a", "b"},
	})
	sub.ReviewComment = "ок"

	var buf bytes.Buffer
	if err := WriteSubmissionExcel(&buf, sub, testSchema(t)); err != nil {
		t.Fatalf("WriteSubmissionExcel() ошибка: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("чтение xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// 4 служебные строки + 3 поля данных
	if len(rows) != 7 {
		t.Fatalf("строк = %d, хотели 7", len(rows))
	}
	if rows[0][0] != "id" || rows[0][1] != "7" {
		t.Errorf("первая строка = %v", rows[0])
	}

	// Подписи из схемы, значения без потерь
	byLabel := make(map[string]string)
	for _, r := range rows[4:] {
		if len(r) > 1 {
			byLabel[r[0]] = r[1]
		} else {
			byLabel[r[0]] = ""
		}
	}
	if byLabel["姓名"] != "Иван" {
		t.Errorf("姓名 = %q", byLabel["姓名"])
	}
	if byLabel["标签"] != "a, b" {
		t.Errorf("标签 = %q", byLabel["标签"])
	}
}

func TestWriteAllExcel(t *testing.T) {
	sch := testSchema(t)
	subs := []*model.Submission{
		testSubmission(1, map[string]any{"name": "Анна", "extra": "x"}),
		testSubmission(2, map[string]any{"name": "Борис", "phone": "7900"}),
	}

	var buf bytes.Buffer
	if err := WriteAllExcel(&buf, subs, sch); err != nil {
		t.Fatalf("WriteAllExcel() ошибка: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("чтение xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("строк = %d, хотели 3", len(rows))
	}

	// Заголовок: служебные колонки, затем поля схемы, затем extra
	header := rows[0]
	want := []string{"id", "status", "review_comment", "created_at", "姓名", "电话", "extra"}
	if len(header) != len(want) {
		t.Fatalf("заголовок = %v", header)
	}
	for i, h := range want {
		if header[i] != h {
			t.Errorf("header[%d] = %q, хотели %q", i, header[i], h)
		}
	}

	// Отсутствующий ключ — пустая ячейка
	row1 := rows[1]
	if row1[4] != "Анна" {
		t.Errorf("row1[姓名] = %q", row1[4])
	}
	if len(row1) > 5 && row1[5] != "" {
		t.Errorf("row1[电话] = %q, хотели пустую", row1[5])
	}
}

func TestWriteSubmissionWord(t *testing.T) {
	sub := testSubmission(3, map[string]any{
		"name":  "О'Брайен <script>",
		"phone": "7900",
	})
	sub.ReviewComment = "проверено"

	var buf bytes.Buffer
	if err := WriteSubmissionWord(&buf, sub, testSchema(t), "Анкета"); err != nil {
		t.Fatalf("WriteSubmissionWord() ошибка: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "<h1>Анкета</h1>") {
		t.Error("нет заголовка формы")
	}
	if !strings.Contains(out, "姓名") {
		t.Error("нет подписи поля из схемы")
	}
	if strings.Contains(out, "<script>") {
		t.Error("HTML в данных не экранирован")
	}
	if !strings.Contains(out, "проверено") {
		t.Error("нет комментария модератора")
	}
}
