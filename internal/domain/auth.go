package domain

// Role enumerates the roles an authenticated actor can carry.
type Role string

const (
	RoleClient  Role = "client"
	RoleAgent   Role = "agent"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
	RoleSystem  Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleAgent, RoleManager, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// IsStaff is true for roles that work tickets.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleManager || r == RoleAdmin
}

// IsSupervisor is true for roles allowed to override routing.
func (r Role) IsSupervisor() bool {
	return r == RoleManager || r == RoleAdmin
}

// Actor is the caller identity handed to the engine by the auth layer.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// SystemActor is used for sweep and router initiated changes.
var SystemActor = Actor{ID: "system", Role: RoleSystem}
