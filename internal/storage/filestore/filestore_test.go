package filestore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// TestNew_CreatesDirectory проверяет создание корневой директории.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if fs.BaseDir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, fs.BaseDir())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestSave проверяет сохранение файла и формат имени.
func TestSave(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := []byte("Hello, World! Тестовые данные для проверки.")
	result, err := fs.Save("site_a", bytes.NewReader(content), "My Photo (1).JPG")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}

	// Файл лежит в поддиректории арендатора
	if !strings.Contains(result.FullPath, filepath.Join("site_a", result.StoredName)) {
		t.Errorf("файл не в директории арендатора: %s", result.FullPath)
	}
	if _, err := os.Stat(result.FullPath); os.IsNotExist(err) {
		t.Error("файл не найден на диске")
	}

	// Формат имени: {unix-ts}_{hex8}_{sanitized}
	namePattern := regexp.MustCompile(`^\d+_[0-9a-f]{8}_My_Photo__1\.jpg$`)
	if !namePattern.MatchString(result.StoredName) {
		t.Errorf("имя файла не соответствует формату: %s", result.StoredName)
	}

	data, err := os.ReadFile(result.FullPath)
	if err != nil {
		t.Fatalf("ошибка чтения файла: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}

	// Temp файл не остался
	entries, _ := os.ReadDir(filepath.Dir(result.FullPath))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("остался временный файл: %s", e.Name())
		}
	}
}

// TestSave_NamespaceIsolation проверяет изоляцию арендаторов по директориям.
func TestSave_NamespaceIsolation(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	r1, err := fs.Save("site_a", strings.NewReader("a"), "f.txt")
	if err != nil {
		t.Fatalf("Save(site_a): %v", err)
	}
	if _, err := fs.Save("site_b", strings.NewReader("b"), "f.txt"); err != nil {
		t.Fatalf("Save(site_b): %v", err)
	}

	if !fs.Exists("site_a", r1.StoredName) {
		t.Error("файл не виден в своей директории")
	}
	if fs.Exists("site_b", r1.StoredName) {
		t.Error("файл виден в чужой директории")
	}

	names, err := fs.List("site_a")
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("List(site_a) вернул %d файлов, хотели 1", len(names))
	}
}

// TestOpen_PathTraversal проверяет защиту от выхода за директорию.
func TestOpen_PathTraversal(t *testing.T) {
	base := t.TempDir()
	fs, err := New(filepath.Join(base, "uploads"))
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	// Файл за пределами директории арендатора
	secret := filepath.Join(base, "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o600); err != nil {
		t.Fatalf("запись секрета: %v", err)
	}

	for _, name := range []string{
		"../../secret.txt",
		"..%2Fsecret.txt",
		"sub/../../secret.txt",
		"/etc/passwd",
	} {
		if _, err := fs.Open("site_a", name); err == nil {
			t.Errorf("Open(%q) не вернул ошибку", name)
		}
	}
}

// TestDelete проверяет удаление и идемпотентность.
func TestDelete(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	r, err := fs.Save("site_a", strings.NewReader("data"), "doc.pdf")
	if err != nil {
		t.Fatalf("Save(): %v", err)
	}

	if err := fs.Delete("site_a", r.StoredName); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if fs.Exists("site_a", r.StoredName) {
		t.Error("файл существует после удаления")
	}

	// Повторное удаление — без ошибки
	if err := fs.Delete("site_a", r.StoredName); err != nil {
		t.Errorf("повторный Delete() ошибка: %v", err)
	}
}

// TestOpen_ReadBack проверяет чтение сохранённого файла.
func TestOpen_ReadBack(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := "содержимое вложения"
	r, err := fs.Save("site_a", strings.NewReader(content), "note.txt")
	if err != nil {
		t.Fatalf("Save(): %v", err)
	}

	f, err := fs.Open("site_a", r.StoredName)
	if err != nil {
		t.Fatalf("Open() ошибка: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("чтение: %v", err)
	}
	if string(data) != content {
		t.Errorf("содержимое = %q, хотели %q", data, content)
	}
}

// TestSanitize проверяет очистку имён файлов.
func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo", "photo"},
		{"my file", "my_file"},
		{"отчёт", "file"},
		{"", "file"},
		{"...", "file"},
		{"a-b_c.d", "a-b_c.d"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, хотели %q", tt.in, got, tt.want)
		}
	}
}
