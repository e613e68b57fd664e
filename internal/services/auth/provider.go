package auth

import "context"

// AuthProvider validates a bearer token and resolves it to an AuthContext.
type AuthProvider interface {
	ValidateToken(ctx context.Context, token string) (*AuthContext, error)
}

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

func (r Role) HasPermission(required Role) bool {
	if required == RoleCustomer {
		return true
	}
	return r == RoleAdmin
}
