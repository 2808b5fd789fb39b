// Пакет filestore — операции с загруженными файлами на диске.
// Файлы арендаторов изолированы по поддиректориям uploads/<namespace>/,
// имена генерируются сервером и не зависят от имени клиента.
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore — управление файлами вложений на диске.
type FileStore struct {
	// baseDir — корневая директория загрузок (FY_UPLOAD_DIR)
	baseDir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StoredName — сгенерированное имя файла внутри директории арендатора
	StoredName string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт новый FileStore. Проверяет и создаёт корневую
// директорию, если она не существует.
func New(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок %s: %w", baseDir, err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Save записывает данные из reader в директорию арендатора.
// Формат имени: {unix-ts}_{hex8}_{sanitized-original}.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) Save(namespace string, reader io.Reader, originalFilename string) (*SaveResult, error) {
	dir := filepath.Join(fs.baseDir, namespace)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию арендатора %s: %w", namespace, err)
	}

	storedName := generateStoredName(originalFilename)
	fullPath := filepath.Join(dir, storedName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StoredName: storedName,
		FullPath:   fullPath,
		Size:       size,
	}, nil
}

// Open открывает файл арендатора для чтения. Имя проверяется
// на выход за пределы директории арендатора (path traversal).
// Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(namespace, storedName string) (*os.File, error) {
	fullPath, err := fs.resolve(namespace, storedName)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", storedName)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storedName, err)
	}
	return f, nil
}

// Delete удаляет файл арендатора с диска.
// Возвращает nil, если файл уже не существует.
func (fs *FileStore) Delete(namespace, storedName string) error {
	fullPath, err := fs.resolve(namespace, storedName)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storedName, err)
	}
	return nil
}

// Exists проверяет существование файла арендатора.
func (fs *FileStore) Exists(namespace, storedName string) bool {
	fullPath, err := fs.resolve(namespace, storedName)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// List возвращает имена файлов в директории арендатора.
// Несуществующая директория — пустой список.
func (fs *FileStore) List(namespace string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fs.baseDir, namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", namespace, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// RemoveNamespace удаляет директорию арендатора со всем содержимым.
// Вызывается при удалении формы; несуществующая директория — не ошибка.
func (fs *FileStore) RemoveNamespace(namespace string) error {
	dir := filepath.Join(fs.baseDir, namespace)
	if filepath.Dir(dir) != fs.baseDir || namespace == "" || strings.Contains(namespace, "..") {
		return fmt.Errorf("недопустимое имя директории: %s", namespace)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("ошибка удаления директории %s: %w", namespace, err)
	}
	return nil
}

// BaseDir возвращает корневую директорию загрузок.
func (fs *FileStore) BaseDir() string {
	return fs.baseDir
}

// resolve строит абсолютный путь файла и отклоняет имена,
// выходящие за пределы директории арендатора.
func (fs *FileStore) resolve(namespace, storedName string) (string, error) {
	dir := filepath.Join(fs.baseDir, namespace)
	fullPath := filepath.Join(dir, storedName)

	if filepath.Dir(fullPath) != dir || strings.Contains(storedName, "..") {
		return "", fmt.Errorf("недопустимое имя файла: %s", storedName)
	}
	return fullPath, nil
}

// generateStoredName генерирует имя файла для хранения на диске.
// Формат: {unix-ts}_{hex8}_{sanitized-original}.
// Пример: 1772323200_a1b2c3d4_photo.jpg
func generateStoredName(originalFilename string) string {
	base := filepath.Base(originalFilename)
	ext := filepath.Ext(base)
	name := sanitize(strings.TrimSuffix(base, ext))

	if len(name) > 80 {
		name = name[:80]
	}

	ts := time.Now().UTC().Unix()
	uid := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]

	return fmt.Sprintf("%d_%s_%s%s", ts, uid, name, strings.ToLower(ext))
}

// sanitize убирает небезопасные символы из имени файла.
// Оставляет буквы, цифры, дефис, подчёркивание и точку.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	out := strings.Trim(result.String(), "._")
	if out == "" {
		return "file"
	}
	return out
}
