// Пакет rbac — логика ролей Formly.
// Три уровня: user < admin < super_admin. Роль назначается при регистрации
// и может быть повышена только super_admin'ом; понизить роль нельзя.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// roleWeight — вес роли для сравнения.
// Чем выше вес, тем больше привилегий.
var roleWeight = map[string]int{
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// AtLeast сообщает, имеет ли role привилегии не ниже required.
// Неизвестные роли имеют нулевой вес и не проходят ни одну проверку.
func AtLeast(role, required string) bool {
	return roleWeight[role] >= roleWeight[required] && roleWeight[role] > 0
}

// CanManageForm определяет, может ли пользователь управлять формой:
// владелец или super_admin.
func CanManageForm(role string, userID int, ownerID *int) bool {
	if AtLeast(role, RoleSuperAdmin) {
		return true
	}
	return ownerID != nil && *ownerID == userID
}

// MaxRole возвращает роль с максимальными привилегиями из двух.
func MaxRole(a, b string) string {
	if roleWeight[a] >= roleWeight[b] {
		return a
	}
	return b
}
