// Пакет templates — серверный рендеринг страниц Formly.
// Схемы арендаторов приходят из БД во время запроса, поэтому разметка
// строится html/template'ами, а не кодогенерацией.
package templates

import (
	"fmt"
	"html/template"
	"io"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/schema"
)

// baseTpl — каркас всех страниц.
const baseTpl = `<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{block "title" .}}Formly{{end}}</title>
<style>
:root { --brand: {{.Brand}}; }
* { box-sizing: border-box; }
body { font-family: system-ui, sans-serif; margin: 0; background: #f5f6f8; color: #1f2430; }
.wrap { max-width: 880px; margin: 0 auto; padding: 24px 16px; }
.nav { background: var(--brand); color: #fff; padding: 12px 16px; display: flex; justify-content: space-between; }
.nav a { color: #fff; text-decoration: none; margin-left: 16px; }
.card { background: #fff; border-radius: 8px; padding: 24px; margin: 16px 0; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
label { display: block; margin: 12px 0 4px; font-weight: 600; }
input, select, textarea { width: 100%; padding: 8px; border: 1px solid #cfd4dc; border-radius: 6px; }
.choice label { display: inline-block; font-weight: 400; margin-right: 12px; }
button, .btn { background: var(--brand); color: #fff; border: 0; border-radius: 6px; padding: 10px 18px; cursor: pointer; text-decoration: none; display: inline-block; margin-top: 16px; }
.error { color: #b42318; margin: 8px 0; }
.notice { color: #027a48; margin: 8px 0; }
table { width: 100%; border-collapse: collapse; }
th, td { text-align: left; padding: 8px; border-bottom: 1px solid #e4e7ec; }
</style>
</head>
<body>
{{block "nav" .}}{{end}}
<div class="wrap">
{{block "content" .}}{{end}}
</div>
</body>
</html>`

// navTpl — навигация консоли (только для аутентифицированных страниц).
const navTpl = `{{define "nav"}}<div class="nav">
<div><a href="/index"><b>Formly</b></a></div>
<div>{{if .Username}}{{.Username}} <a href="/create_form/new">Новая форма</a> <a href="/password">Пароль</a> <a href="/logout">Выход</a>{{end}}</div>
</div>{{end}}`

// pageDefs — контент страниц по именам.
var pageDefs = map[string]string{
	"login": `{{define "title"}}Вход — Formly{{end}}
{{define "content"}}<div class="card">
<h1>Вход</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
<label for="username">Имя пользователя</label>
<input id="username" name="username" required autofocus>
<label for="password">Пароль</label>
<input id="password" name="password" type="password" required>
<button type="submit">Войти</button>
</form>
<p>Нет аккаунта? <a href="/register">Регистрация</a></p>
</div>{{end}}`,

	"register": `{{define "title"}}Регистрация — Formly{{end}}
{{define "content"}}<div class="card">
<h1>Регистрация</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/register">
<label for="username">Имя пользователя</label>
<input id="username" name="username" required autofocus>
<label for="password">Пароль</label>
<input id="password" name="password" type="password" required>
<button type="submit">Создать аккаунт</button>
</form>
<p>Уже есть аккаунт? <a href="/login">Вход</a></p>
</div>{{end}}`,

	"password": `{{define "title"}}Смена пароля — Formly{{end}}
{{define "content"}}<div class="card">
<h1>Смена пароля</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
<form method="post" action="/password">
<label for="old_password">Текущий пароль</label>
<input id="old_password" name="old_password" type="password" required>
<label for="new_password">Новый пароль</label>
<input id="new_password" name="new_password" type="password" required>
<button type="submit">Сменить пароль</button>
</form>
</div>{{end}}`,

	"index": `{{define "title"}}Мои формы — Formly{{end}}
{{define "content"}}<h1>Мои формы</h1>
{{if not .Forms}}<div class="card"><p>Форм пока нет. <a href="/create_form/new">Создать первую</a></p></div>{{end}}
{{range .Forms}}<div class="card">
<h2>{{.Name}}</h2>
<p><code>/f/{{.SiteName}}</code>{{if .Description}} — {{.Description}}{{end}}</p>
<a class="btn" href="/site/{{.SiteName}}/admin">Консоль</a>
<a class="btn" href="/f/{{.SiteName}}">Открыть</a>
<a class="btn" href="/create_form/site/{{.SiteName}}">Изменить</a>
<form method="post" action="/form/{{.ID}}/delete" style="display:inline" onsubmit="return confirm('Удалить форму и все заявки?')">
<button type="submit">Удалить</button>
</form>
</div>{{end}}{{end}}`,

	"create_form": `{{define "title"}}Создание формы — Formly{{end}}
{{define "content"}}<div class="card">
<h1>{{if .EditSlug}}Изменение формы{{else}}Создание формы{{end}}</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/create_form">
<label for="name">Название</label>
<input id="name" name="name" value="{{.Name}}" required>
<label for="site_name">Идентификатор (slug)</label>
<input id="site_name" name="site_name" value="{{.SiteName}}" {{if .EditSlug}}readonly{{end}} required>
<label for="description">Описание</label>
<input id="description" name="description" value="{{.Description}}">
<label for="schema_json">Схема (JSON)</label>
<textarea id="schema_json" name="schema_json" rows="18" required>{{.SchemaJSON}}</textarea>
<button type="submit">Опубликовать</button>
</form>
</div>{{end}}`,

	"create_success": `{{define "title"}}Форма создана — Formly{{end}}
{{define "content"}}<div class="card">
<h1>Форма опубликована</h1>
<p class="notice">«{{.Form.Name}}» доступна по адресу <code>{{.PublicURL}}</code>.</p>
<a class="btn" href="/f/{{.Form.SiteName}}">Открыть форму</a>
<a class="btn" href="/site/{{.Form.SiteName}}/admin">Консоль заявок</a>
<a class="btn" href="/index">К списку форм</a>
</div>{{end}}`,

	"site_admin": `{{define "title"}}{{.Form.Name}} — консоль{{end}}
{{define "content"}}<h1>{{.Form.Name}}</h1>
<div class="card">
<p>Заявки, графики и экспорт доступны через JSON API:
<code>/site/{{.Form.SiteName}}/admin/api/responses</code></p>
<h2>Заявки ({{.Total}})</h2>
<form method="get"><input name="q" value="{{.Query}}" placeholder="Поиск по данным"><button type="submit">Найти</button></form>
<table>
<tr><th>№</th>{{range .Columns}}<th>{{.Label}}</th>{{end}}<th>Статус</th><th></th></tr>
{{range .Items}}<tr>
<td>{{.ID}}</td>
{{$sub := .}}{{range $.Columns}}<td>{{index $sub.Data .Key}}</td>{{end}}
<td>{{.Status}}{{if .ReviewComment}} · {{.ReviewComment}}{{end}}</td>
<td><form method="post" action="/form/{{$.Form.ID}}/delete/{{.ID}}" onsubmit="return confirm('Удалить заявку?')"><button type="submit">✕</button></form></td>
</tr>{{end}}
</table>
</div>{{end}}`,

	"public_form": `{{define "title"}}{{.Form.Name}}{{end}}
{{define "content"}}<div class="card">
<h1>{{.Form.Name}}</h1>
{{if .Description}}<div>{{.Description}}</div>{{end}}
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Rejected}}<p class="error">Отклонённые вложения: {{range .Rejected}}{{.}} {{end}}</p>{{end}}
{{if .Submitted}}<p class="notice">Заявка №{{.SubmissionID}} принята и ожидает проверки.</p>
<p><a href="/site/{{.Form.SiteName}}/status_query">Проверить статус</a></p>
{{else}}
<form method="post" action="{{.Action}}"{{if .HasFiles}} enctype="multipart/form-data"{{end}}>
{{range .Fields}}
<label for="fy_{{.Key}}">{{if .Label}}{{.Label}}{{else}}{{.Key}}{{end}}{{if .Required}} *{{end}}</label>
{{if eq (kindOf .) "textarea"}}<textarea id="fy_{{.Key}}" name="{{.Key}}" rows="4"{{if .Required}} required{{end}} placeholder="{{.Placeholder}}"></textarea>
{{else if eq (kindOf .) "select"}}<select id="fy_{{.Key}}" name="{{.Key}}"{{if .Required}} required{{end}}>
<option value=""></option>{{$f := .}}{{range .Options}}<option value="{{.}}">{{.}}</option>{{end}}</select>
{{else if eq (kindOf .) "radio"}}<span class="choice">{{$f := .}}{{range .Options}}<label><input type="radio" name="{{$f.Key}}" value="{{.}}"{{if $f.Required}} required{{end}}> {{.}}</label>{{end}}</span>
{{else if eq (kindOf .) "checkbox"}}<span class="choice">{{$f := .}}{{range .Options}}<label><input type="checkbox" name="{{$f.Key}}" value="{{.}}"> {{.}}</label>{{end}}</span>
{{else if eq (kindOf .) "file"}}<input id="fy_{{.Key}}" name="{{.Key}}" type="file" multiple{{if .Required}} required{{end}}>
{{else}}<input id="fy_{{.Key}}" name="{{.Key}}" type="{{inputType .}}"{{if .Required}} required{{end}} placeholder="{{.Placeholder}}">
{{end}}
{{end}}
{{if not .Preview}}<button type="submit">Отправить</button>{{end}}
</form>
{{end}}
</div>{{end}}`,

	"status_query": `{{define "title"}}Статус заявки{{end}}
{{define "content"}}<div class="card">
<h1>Проверка статуса</h1>
<form method="get">
<label for="name">Значение любого поля вашей заявки (телефон, email, имя)</label>
<input id="name" name="name" value="{{.Query}}" required>
<button type="submit">Проверить</button>
</form>
{{if .Searched}}
{{if not .Entries}}<p class="error">Заявки не найдены.</p>{{end}}
{{range .Entries}}<p class="notice">Заявка №{{.ID}}: {{.Status}}{{if .ReviewComment}} — {{.ReviewComment}}{{end}}</p>{{end}}
{{end}}
</div>{{end}}`,
}

// funcs — функции, доступные шаблонам.
var funcs = template.FuncMap{
	"kindOf": func(f schema.Field) string {
		return string(f.Kind)
	},
	"inputType": func(f schema.Field) string {
		switch f.Kind {
		case schema.KindEmail:
			return "email"
		case schema.KindTel:
			return "tel"
		case schema.KindNumber:
			return "number"
		case schema.KindDate:
			return "date"
		case schema.KindTime:
			return "time"
		default:
			return "text"
		}
	},
}

// pages — собранные шаблоны страниц.
var pages = buildPages()

func buildPages() map[string]*template.Template {
	out := make(map[string]*template.Template, len(pageDefs))
	for name, def := range pageDefs {
		t := template.Must(template.New("base").Funcs(funcs).Parse(baseTpl))
		template.Must(t.Parse(navTpl))
		template.Must(t.Parse(def))
		out[name] = t
	}
	return out
}

// defaultBrand — цвет бренда по умолчанию для страниц без схемы.
const defaultBrand = "#2563eb"

// LoginData — данные страниц login/register.
type LoginData struct {
	Brand    string
	Username string
	Error    string
}

// PasswordData — данные страницы смены пароля.
type PasswordData struct {
	Brand    string
	Username string
	Error    string
	Notice   string
}

// IndexData — данные списка форм.
type IndexData struct {
	Brand    string
	Username string
	Forms    []*model.FormDef
}

// CreateFormData — данные редактора формы.
type CreateFormData struct {
	Brand       string
	Username    string
	Name        string
	SiteName    string
	Description string
	SchemaJSON  string
	EditSlug    string
	Error       string
}

// CreateSuccessData — данные страницы успешной публикации.
type CreateSuccessData struct {
	Brand    string
	Username string
	Form     *model.FormDef
	// PublicURL — абсолютный адрес публичной формы
	PublicURL string
}

// SiteAdminData — данные страницы консоли арендатора.
type SiteAdminData struct {
	Brand    string
	Username string
	Form     *model.FormDef
	Items    []*model.Submission
	Columns  []schema.Column
	Query    string
	Total    int
}

// PublicFormData — данные публичной формы.
type PublicFormData struct {
	Brand        string
	Username     string
	Form         *model.FormDef
	Fields       []schema.Field
	Description  template.HTML
	HasFiles     bool
	Action       string
	Preview      bool
	Submitted    bool
	SubmissionID int
	Rejected     []string
	Error        string
}

// StatusQueryData — данные страницы самопроверки статуса.
type StatusQueryData struct {
	Brand    string
	Username string
	Query    string
	Searched bool
	Entries  []StatusEntry
}

// StatusEntry — строка результата самопроверки.
type StatusEntry struct {
	ID            int
	Status        string
	ReviewComment string
}

// Render выполняет страницу по имени.
func Render(w io.Writer, page string, data any) error {
	t, ok := pages[page]
	if !ok {
		return fmt.Errorf("неизвестная страница: %s", page)
	}
	return t.ExecuteTemplate(w, "base", data)
}

// BrandOr возвращает цвет бренда или значение по умолчанию.
func BrandOr(brand string) string {
	if brand == "" {
		return defaultBrand
	}
	return brand
}
