package authapi

import (
	"context"

	"ventasbros/cmd/identity"
	"ventasbros/cmd/internal/auth/session"
)

type principalSource struct {
	users identity.Store
}

// NewPrincipalSource adapts the identity store to the session service's
// owner-lookup collaborator. Deleted users surface as
// session.ErrPrincipalUnavailable; deactivated users are returned with
// Active=false and the session service refuses to issue for them.
func NewPrincipalSource(users identity.Store) session.PrincipalSource {
	return principalSource{users: users}
}

func (s principalSource) FindPrincipalByID(ctx context.Context, id string) (session.Principal, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if identity.IsNotFound(err) {
			return session.Principal{}, session.ErrPrincipalUnavailable
		}
		return session.Principal{}, err
	}

	return session.Principal{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Active:   u.IsActive,
	}, nil
}
