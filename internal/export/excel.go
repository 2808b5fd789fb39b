// Пакет export — выгрузка заявок в офисные форматы.
// Excel строится через excelize; Word-выгрузка отдаёт HTML-документ,
// который Word открывает как .doc.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/schema"
)

const sheetName = "Sheet1"

// metaColumns — служебные колонки, предшествующие данным заявки.
var metaColumns = []string{"id", "status", "review_comment", "created_at"}

// WriteSubmissionExcel пишет одну заявку как таблицу «поле — значение».
// Подписи берутся из схемы; ключи вне схемы выводятся как есть.
func WriteSubmissionExcel(w io.Writer, sub *model.Submission, sch *schema.Schema) error {
	f := excelize.NewFile()
	defer f.Close()

	titles := sch.TitleMap()
	row := 1
	setRow := func(label string, value any) error {
		if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), label); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), cellValue(value)); err != nil {
			return err
		}
		row++
		return nil
	}

	for _, meta := range [][2]any{
		{"id", sub.ID},
		{"status", sub.Status},
		{"review_comment", sub.ReviewComment},
		{"created_at", sub.CreatedAt},
	} {
		if err := setRow(meta[0].(string), meta[1]); err != nil {
			return fmt.Errorf("запись строки: %w", err)
		}
	}

	for _, key := range dataKeys(sub.Data, sch) {
		label := titles[key]
		if label == "" {
			label = key
		}
		if err := setRow(label, sub.Data[key]); err != nil {
			return fmt.Errorf("запись строки: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("запись xlsx: %w", err)
	}
	return nil
}

// WriteAllExcel пишет все заявки формы одной широкой таблицей.
// Первые колонки служебные, дальше — ключи данных в порядке первого
// появления (сначала поля схемы, затем прочие). Отсутствующие ключи
// остаются пустыми ячейками.
func WriteAllExcel(w io.Writer, subs []*model.Submission, sch *schema.Schema) error {
	f := excelize.NewFile()
	defer f.Close()

	keys := unionKeys(subs, sch)
	titles := sch.TitleMap()

	// Заголовок
	col := 1
	writeCell := func(row, col int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheetName, cell, v)
	}
	for _, meta := range metaColumns {
		if err := writeCell(1, col, meta); err != nil {
			return fmt.Errorf("запись заголовка: %w", err)
		}
		col++
	}
	for _, key := range keys {
		label := titles[key]
		if label == "" {
			label = key
		}
		if err := writeCell(1, col, label); err != nil {
			return fmt.Errorf("запись заголовка: %w", err)
		}
		col++
	}

	// Строки данных
	for i, sub := range subs {
		row := i + 2
		values := []any{sub.ID, sub.Status, sub.ReviewComment, sub.CreatedAt}
		for _, key := range keys {
			if v, ok := sub.Data[key]; ok {
				values = append(values, cellValue(v))
			} else {
				values = append(values, "")
			}
		}
		for c, v := range values {
			if err := writeCell(row, c+1, v); err != nil {
				return fmt.Errorf("запись строки %d: %w", row, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("запись xlsx: %w", err)
	}
	return nil
}

// dataKeys возвращает ключи данных заявки: сначала в порядке схемы,
// затем посторонние ключи в лексикографическом порядке.
func dataKeys(data map[string]any, sch *schema.Schema) []string {
	var keys []string
	seen := make(map[string]bool, len(data))
	for _, f := range sch.Fields {
		if _, ok := data[f.Key]; ok {
			keys = append(keys, f.Key)
			seen[f.Key] = true
		}
	}
	var extra []string
	for k := range data {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// unionKeys собирает объединение ключей данных всех заявок.
// Порядок: поля схемы (если встречаются в данных), затем прочие ключи
// по первому появлению.
func unionKeys(subs []*model.Submission, sch *schema.Schema) []string {
	present := make(map[string]bool)
	for _, sub := range subs {
		for k := range sub.Data {
			present[k] = true
		}
	}

	var keys []string
	seen := make(map[string]bool)
	for _, f := range sch.Fields {
		if present[f.Key] {
			keys = append(keys, f.Key)
			seen[f.Key] = true
		}
	}
	for _, sub := range subs {
		var extra []string
		for k := range sub.Data {
			if !seen[k] {
				extra = append(extra, k)
				seen[k] = true
			}
		}
		sort.Strings(extra)
		keys = append(keys, extra...)
	}
	return keys
}

// cellValue приводит значение данных к виду для ячейки.
// Списки склеиваются через запятую, скаляры остаются без изменений.
func cellValue(v any) any {
	switch x := v.(type) {
	case []any:
		var parts []string
		for _, item := range x {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(x, ", ")
	case time.Time:
		return x
	default:
		return v
	}
}
