package engine

import "github.com/roach88/fluxora/internal/domain"

// Role is the party whose authentication a sender-or-admin operation
// requires.
type Role uint8

const (
	RoleSender Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "sender"
}

// ResolveAuthorizer picks which identity must authenticate for pause, resume
// and cancel: the administrator when the caller claims to be the
// administrator, otherwise the stream's sender.
func ResolveAuthorizer(s domain.Stream, admin, caller domain.Identity) Role {
	if caller != "" && caller == admin {
		return RoleAdmin
	}
	return RoleSender
}

// identityFor maps a role back to the identity that must authenticate.
func identityFor(r Role, s domain.Stream, admin domain.Identity) domain.Identity {
	if r == RoleAdmin {
		return admin
	}
	return s.Sender
}
