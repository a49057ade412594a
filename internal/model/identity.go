package model

// Preview roles a super-user may simulate.
const (
	RoleTeachers   = "Profesores"
	RolePreceptors = "Preceptores"
	RoleParents    = "Padres"
	RoleStudents   = "Alumnos"
)

// AllRoles lists the roles accepted by the role preview, in display order.
var AllRoles = []string{RoleTeachers, RolePreceptors, RoleParents, RoleStudents}

// IsValidRole reports whether role is one of AllRoles.
func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Identity is the authenticated user as reported by the whoami endpoint.
type Identity struct {
	Username    string   `json:"username"`
	FullName    string   `json:"full_name"`
	Email       string   `json:"email"`
	Groups      []string `json:"groups"`
	IsSuperuser bool     `json:"is_superuser"`
	Role        string   `json:"rol"`
}
