package domain

// Role is an actor's authorization level.
type Role string

const (
	// RoleAdmin may run any action, including live applies.
	RoleAdmin Role = "admin"
	// RoleUser is read-only: validation and dry runs.
	RoleUser Role = "user"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleUser
}

// Actor identifies who requested a run.
type Actor struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}
