// accounts.go — сервис учётных записей консоли.
// Регистрация и аутентификация по паре username/password, пароли
// хранятся как bcrypt-хэши.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/rbac"
	"github.com/formly-platform/formly/internal/repository"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 6
)

// AccountService — регистрация и аутентификация пользователей консоли.
type AccountService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewAccountService создаёт сервис учётных записей.
func NewAccountService(users repository.UserRepository, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:  users,
		logger: logger.With(slog.String("component", "account_service")),
	}
}

// Register создаёт пользователя с ролью user.
// Повторный username — ErrConflict; слабый пароль — ErrValidation.
func (s *AccountService) Register(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return nil, fmt.Errorf("%w: имя пользователя должно быть от %d до %d символов",
			ErrValidation, minUsernameLen, maxUsernameLen)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: пароль должен быть не короче %d символов",
			ErrValidation, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("хэширование пароля: %w", err)
	}

	u := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         rbac.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: имя пользователя '%s' занято", ErrConflict, username)
		}
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.Int("user_id", u.ID),
		slog.String("username", username))
	return u, nil
}

// Authenticate проверяет пару username/password.
// Любая причина отказа — ErrUnauthorized, без уточнений.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("поиск пользователя: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}

	return u, nil
}

// ChangePassword заменяет пароль пользователя после проверки старого.
// Неверный старый пароль — ErrUnauthorized; слабый новый — ErrValidation.
func (s *AccountService) ChangePassword(ctx context.Context, userID int, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: пароль должен быть не короче %d символов",
			ErrValidation, minPasswordLen)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("поиск пользователя: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrUnauthorized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("хэширование пароля: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("обновление пароля: %w", err)
	}

	s.logger.Info("Пароль изменён", slog.Int("user_id", userID))
	return nil
}

// ChangeRole повышает роль пользователя. Только super_admin;
// понижение роли запрещено, неизвестная роль — ErrValidation.
func (s *AccountService) ChangeRole(ctx context.Context, actorRole string, targetID int, newRole string) error {
	if !rbac.AtLeast(actorRole, rbac.RoleSuperAdmin) {
		return ErrForbidden
	}
	if !rbac.IsValidRole(newRole) {
		return fmt.Errorf("%w: неизвестная роль %q", ErrValidation, newRole)
	}

	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("поиск пользователя: %w", err)
	}
	if rbac.MaxRole(u.Role, newRole) != newRole {
		return fmt.Errorf("%w: роль %q нельзя понизить до %q", ErrValidation, u.Role, newRole)
	}
	if u.Role == newRole {
		return nil
	}

	if err := s.users.UpdateRole(ctx, targetID, newRole); err != nil {
		return fmt.Errorf("обновление роли: %w", err)
	}

	s.logger.Info("Роль пользователя изменена",
		slog.Int("user_id", targetID),
		slog.String("old_role", u.Role),
		slog.String("new_role", newRole))
	return nil
}

// GetByID возвращает пользователя по id.
func (s *AccountService) GetByID(ctx context.Context, id int) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}
