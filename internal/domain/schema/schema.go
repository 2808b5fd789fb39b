// Пакет schema — JSON-схема формы арендатора: разбор, валидация,
// политика загрузки файлов, тема и вывод колонок для консоли.
// Типы полей — закрытый enum; неизвестный тип отклоняется на этапе
// валидации, а не в рендерере.
package schema

import (
	"fmt"
	"strings"
)

// FieldKind — тип поля формы.
type FieldKind string

// Допустимые типы полей.
const (
	KindText     FieldKind = "text"
	KindEmail    FieldKind = "email"
	KindTel      FieldKind = "tel"
	KindNumber   FieldKind = "number"
	KindDate     FieldKind = "date"
	KindTime     FieldKind = "time"
	KindTextarea FieldKind = "textarea"
	KindRadio    FieldKind = "radio"
	KindCheckbox FieldKind = "checkbox"
	KindSelect   FieldKind = "select"
	KindFile     FieldKind = "file"
)

// kinds — множество допустимых типов.
var kinds = map[FieldKind]bool{
	KindText: true, KindEmail: true, KindTel: true, KindNumber: true,
	KindDate: true, KindTime: true, KindTextarea: true, KindRadio: true,
	KindCheckbox: true, KindSelect: true, KindFile: true,
}

// ParseKind преобразует строку в FieldKind.
// Пустая строка трактуется как text (поля без типа в старых схемах).
func ParseKind(s string) (FieldKind, error) {
	if s == "" {
		return KindText, nil
	}
	k := FieldKind(strings.ToLower(strings.TrimSpace(s)))
	if !kinds[k] {
		return "", fmt.Errorf("неизвестный тип поля %q", s)
	}
	return k, nil
}

// HasOptions сообщает, требует ли тип список вариантов.
func (k FieldKind) HasOptions() bool {
	return k == KindRadio || k == KindCheckbox || k == KindSelect
}

// Field — одно поле формы.
type Field struct {
	// Key — ключ поля в JSON заявки
	Key string
	// Label — подпись поля (может быть пустой, см. labels.go)
	Label string
	// Kind — тип поля
	Kind FieldKind
	// Required — обязательное поле
	Required bool
	// Options — варианты для radio/checkbox/select
	Options []string
	// Placeholder — подсказка в input
	Placeholder string
	// Raw — исходный JSON-объект поля (для вывода подписей)
	Raw map[string]any
}

// UploadPolicy — политика загрузки файлов арендатора.
type UploadPolicy struct {
	// AllowedTypes — белый список расширений (нижний регистр, без точки);
	// пустой — разрешено всё
	AllowedTypes map[string]bool
	// MaxFiles — максимум файлов на одно поле
	MaxFiles int
	// Strict — при true нарушение политики отклоняет заявку целиком,
	// при false нарушители отбрасываются и перечисляются в ответе
	Strict bool
}

// Allows проверяет имя файла по белому списку расширений.
func (p UploadPolicy) Allows(filename string) bool {
	if len(p.AllowedTypes) == 0 {
		return true
	}
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	ext := strings.ToLower(filename[idx+1:])
	return p.AllowedTypes[ext]
}

// Theme — цветовая тема публичной страницы.
type Theme struct {
	// BrandLight — основной цвет светлой темы
	BrandLight string
	// BrandDark — основной цвет тёмной темы
	BrandDark string
	// Mode — light, dark или auto
	Mode string
}

// LabelPolicy — политика отбора подписей колонок консоли.
type LabelPolicy struct {
	// RequireCJK — скрывать колонки без CJK-символов в подписи
	// (поведение старых админок; настраивается на арендатора)
	RequireCJK bool
}

// Schema — разобранная схема формы.
type Schema struct {
	// Fields — поля формы в порядке объявления
	Fields []Field
	// Theme — тема публичной страницы
	Theme Theme
	// Upload — политика загрузки файлов
	Upload UploadPolicy
	// Labels — политика подписей колонок
	Labels LabelPolicy
	// Description — HTML/текст описания формы
	Description string
	// Raw — исходный JSON (сохраняется при частичных правках темы)
	Raw map[string]any
}

// Parse разбирает и валидирует JSON-схему.
// Отсутствующие секции получают значения по умолчанию; поле с неизвестным
// типом или без ключа — ошибка валидации.
func Parse(raw map[string]any) (*Schema, error) {
	if raw == nil {
		raw = map[string]any{}
	}

	s := &Schema{
		Theme:  parseTheme(raw),
		Upload: parseUploadPolicy(raw),
		Labels: parseLabelPolicy(raw),
		Raw:    raw,
	}

	// Описание формы: descHTML > desc > description
	for _, k := range []string{"descHTML", "desc", "description"} {
		if v, ok := raw[k].(string); ok && strings.TrimSpace(v) != "" {
			s.Description = v
			break
		}
	}

	// Список полей: первый из ключей fields / questions / items
	var arr []any
	for _, k := range []string{"fields", "questions", "items"} {
		if v, ok := raw[k].([]any); ok {
			arr = v
			break
		}
	}

	seen := make(map[string]bool, len(arr))
	for i, item := range arr {
		fm, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("поле #%d: не объект", i)
		}

		key := firstString(fm, "key", "id", "name")
		if key == "" {
			return nil, fmt.Errorf("поле #%d: отсутствует key", i)
		}
		if seen[key] {
			return nil, fmt.Errorf("поле %q: дублирующийся ключ", key)
		}
		seen[key] = true

		kind, err := ParseKind(firstString(fm, "type"))
		if err != nil {
			return nil, fmt.Errorf("поле %q: %w", key, err)
		}

		f := Field{
			Key:         key,
			Label:       firstString(fm, "label"),
			Kind:        kind,
			Required:    boolValue(fm["required"]),
			Placeholder: firstString(fm, "placeholder"),
			Raw:         fm,
		}

		if opts, ok := fm["options"].([]any); ok {
			for _, o := range opts {
				if str, ok := o.(string); ok {
					f.Options = append(f.Options, str)
				}
			}
		}
		if kind.HasOptions() && len(f.Options) == 0 {
			return nil, fmt.Errorf("поле %q: тип %s требует непустой options", key, kind)
		}

		s.Fields = append(s.Fields, f)
	}

	return s, nil
}

// HasFileField сообщает, содержит ли схема хотя бы одно файловое поле.
func (s *Schema) HasFileField() bool {
	for _, f := range s.Fields {
		if f.Kind == KindFile {
			return true
		}
	}
	return false
}

// FirstChoiceField возвращает первое поле с вариантами
// (для графика распределения) или nil.
func (s *Schema) FirstChoiceField() *Field {
	for i := range s.Fields {
		if s.Fields[i].Kind.HasOptions() {
			return &s.Fields[i]
		}
	}
	return nil
}

// parseTheme читает секцию theme с допусками старых ключей.
func parseTheme(raw map[string]any) Theme {
	t, _ := raw["theme"].(map[string]any)
	brand := strings.TrimSpace(firstString(t, "brand"))

	th := Theme{
		BrandLight: strings.TrimSpace(firstString(t, "brand_light")),
		BrandDark:  strings.TrimSpace(firstString(t, "brand_dark")),
		Mode:       strings.ToLower(firstString(t, "mode", "theme_mode", "appearance")),
	}
	if th.BrandLight == "" {
		th.BrandLight = brand
	}
	if th.BrandLight == "" {
		th.BrandLight = "#2563eb"
	}
	if th.BrandDark == "" {
		th.BrandDark = brand
	}
	if th.BrandDark == "" {
		th.BrandDark = "#0ea5e9"
	}
	switch th.Mode {
	case "light", "dark", "auto":
	default:
		th.Mode = "auto"
	}
	return th
}

// parseUploadPolicy читает секцию upload (или settings.upload).
func parseUploadPolicy(raw map[string]any) UploadPolicy {
	cfg, _ := raw["upload"].(map[string]any)
	if cfg == nil {
		if settings, ok := raw["settings"].(map[string]any); ok {
			cfg, _ = settings["upload"].(map[string]any)
		}
	}

	p := UploadPolicy{MaxFiles: 3}
	if cfg == nil {
		return p
	}

	if n := intValue(cfg["max_files"]); n > 0 {
		p.MaxFiles = n
	}
	p.Strict = boolValue(cfg["strict"])

	allowed := firstString(cfg, "allowed_file_types")
	for _, ext := range strings.Split(allowed, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if p.AllowedTypes == nil {
			p.AllowedTypes = make(map[string]bool)
		}
		p.AllowedTypes[strings.TrimPrefix(ext, ".")] = true
	}
	return p
}

// parseLabelPolicy читает секцию labels.
// По умолчанию RequireCJK=true — поведение исходных админок.
func parseLabelPolicy(raw map[string]any) LabelPolicy {
	p := LabelPolicy{RequireCJK: true}
	if cfg, ok := raw["labels"].(map[string]any); ok {
		if v, ok := cfg["require_cjk"].(bool); ok {
			p.RequireCJK = v
		}
	}
	return p
}

// --- JSON-хелперы ---

// firstString возвращает первое непустое строковое значение по ключам.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// boolValue трактует значение как bool (true, "true", 1).
func boolValue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	case float64:
		return t != 0
	}
	return false
}

// intValue трактует значение как int (float64 из encoding/json, строка).
func intValue(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		var n int
		_, _ = fmt.Sscanf(t, "%d", &n)
		return n
	}
	return 0
}
