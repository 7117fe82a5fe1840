package crm

// Role is a closed set of user roles. Route access and dashboard shape are
// derived from it via the rbac permission map.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSales      Role = "sales"
	RoleBookkeeper Role = "bookkeeper"
	RoleInstaller  Role = "installer"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSales, RoleBookkeeper, RoleInstaller:
		return true
	default:
		return false
	}
}

// Actor identifies the authenticated user performing an operation. It is
// passed explicitly into every service call; domain code never reads
// session state from ambient context.
type Actor struct {
	UserID int64
	Role   Role
}

// System is the actor recorded for operations initiated by background jobs.
var System = Actor{UserID: 0, Role: RoleAdmin}
