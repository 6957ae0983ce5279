package enums

import "fmt"

// AdminRole maps to the admin_role_enum enum in Postgres.
type AdminRole string

const (
	AdminRoleAdmin   AdminRole = "admin"
	AdminRoleManager AdminRole = "manager"
)

var validAdminRoles = []AdminRole{
	AdminRoleAdmin,
	AdminRoleManager,
}

// IsValid reports whether the value matches the canonical admin role enum.
func (r AdminRole) IsValid() bool {
	for _, candidate := range validAdminRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAdminRole converts raw input into AdminRole.
func ParseAdminRole(value string) (AdminRole, error) {
	for _, candidate := range validAdminRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid admin role %q", value)
}
