package rbac

import "testing"

func TestAtLeast(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		required string
		want     bool
	}{
		{"user >= user", RoleUser, RoleUser, true},
		{"user < admin", RoleUser, RoleAdmin, false},
		{"admin >= user", RoleAdmin, RoleUser, true},
		{"admin >= admin", RoleAdmin, RoleAdmin, true},
		{"admin < super_admin", RoleAdmin, RoleSuperAdmin, false},
		{"super_admin >= admin", RoleSuperAdmin, RoleAdmin, true},
		{"неизвестная роль", "manager", RoleUser, false},
		{"пустая роль", "", RoleUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AtLeast(tt.role, tt.required); got != tt.want {
				t.Errorf("AtLeast(%q, %q) = %v, ожидается %v", tt.role, tt.required, got, tt.want)
			}
		})
	}
}

func TestCanManageForm(t *testing.T) {
	owner := 7
	other := 8

	if !CanManageForm(RoleAdmin, owner, &owner) {
		t.Error("владелец должен управлять своей формой")
	}
	if CanManageForm(RoleAdmin, other, &owner) {
		t.Error("чужой admin не должен управлять формой")
	}
	if !CanManageForm(RoleSuperAdmin, other, &owner) {
		t.Error("super_admin должен управлять любой формой")
	}
	if CanManageForm(RoleAdmin, owner, nil) {
		t.Error("форма без владельца доступна только super_admin")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range []string{RoleUser, RoleAdmin, RoleSuperAdmin} {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = false", r)
		}
	}
	if IsValidRole("readonly") {
		t.Error("IsValidRole(\"readonly\") = true для чужой роли")
	}
}
