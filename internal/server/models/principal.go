package models

// Role is assigned by the identity provider; the engines only read it.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleContributor Role = "contributor"
	RoleClient      Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleContributor, RoleClient:
		return true
	}
	return false
}

// CanApprove reports whether the role carries the approver capability
// for JIT and break-glass requests.
func (r Role) CanApprove() bool {
	return r == RoleAdmin || r == RoleManager
}

// Principal is the authenticated caller.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
