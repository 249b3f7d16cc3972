package enums

import "strings"

// UserRole discriminates the account variant stored in users.role.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleSeller   UserRole = "seller"
	UserRoleRider    UserRole = "rider"
)

var userRoles = []UserRole{UserRoleCustomer, UserRoleSeller, UserRoleRider}

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool { return member(r, userRoles) }

// ParseUserRole accepts any casing and surrounding whitespace.
func ParseUserRole(value string) (UserRole, error) {
	return parseMember(strings.ToLower(strings.TrimSpace(value)), "user role", userRoles)
}
