// Package access holds the role predicates and the policy table that
// decides, per operation, who may call it.
//
// Every route is registered with an Operation; the auth middleware looks
// the operation up here before any handler code runs. Adding an endpoint
// means adding one row to DefaultPolicy.
package access

import (
	"github.com/sakif/tubescribe/internal/apperror"
	"github.com/sakif/tubescribe/internal/model"
)

// Predicate is the minimum role an operation requires.
type Predicate int

const (
	Public Predicate = iota
	Authenticated
	Staff
	Superuser
)

func (p Predicate) String() string {
	switch p {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Staff:
		return "staff"
	case Superuser:
		return "superuser"
	default:
		return "unknown"
	}
}

// Allows reports whether u satisfies p. A nil or inactive user only
// satisfies Public.
func (p Predicate) Allows(u *model.User) bool {
	if p == Public {
		return true
	}
	if u == nil || !u.IsActive {
		return false
	}
	switch p {
	case Authenticated:
		return true
	case Staff:
		return u.IsAdmin()
	case Superuser:
		return u.IsSuperuser
	default:
		return false
	}
}

// Operation names one API operation.
type Operation string

const (
	OpRegister       Operation = "auth.register"
	OpObtainToken    Operation = "auth.token.obtain"
	OpRefreshToken   Operation = "auth.token.refresh"
	OpMe             Operation = "auth.me"
	OpChangePassword Operation = "auth.password.change"
	OpUpdateTheme    Operation = "auth.theme.update"
	OpDeleteAccount  Operation = "auth.account.delete"

	OpGenerateBlog Operation = "blog.generate"
	OpListBlogs    Operation = "blog.list"
	OpGetBlog      Operation = "blog.get"
	OpDeleteBlog   Operation = "blog.delete"

	OpListUsers        Operation = "management.users.list"
	OpCreateUser       Operation = "management.users.create"
	OpGetUser          Operation = "management.users.get"
	OpDeleteUser       Operation = "management.users.delete"
	OpListInvites      Operation = "management.invites.list"
	OpCreateInvite     Operation = "management.invites.create"
	OpGetInvite        Operation = "management.invites.get"
	OpDeleteInvite     Operation = "management.invites.delete"
	OpDeactivateInvite Operation = "management.invites.deactivate"
	OpBanUser          Operation = "management.ban"
	OpViewStats        Operation = "management.stats"
)

// Policy maps operations to the predicate they require.
type Policy map[Operation]Predicate

// DefaultPolicy is the policy the server runs with. Statistics need a
// superuser; the rest of the management surface accepts any staff member.
func DefaultPolicy() Policy {
	return Policy{
		OpRegister:       Public,
		OpObtainToken:    Public,
		OpRefreshToken:   Public,
		OpMe:             Authenticated,
		OpChangePassword: Authenticated,
		OpUpdateTheme:    Authenticated,
		OpDeleteAccount:  Authenticated,

		OpGenerateBlog: Authenticated,
		OpListBlogs:    Authenticated,
		OpGetBlog:      Authenticated,
		OpDeleteBlog:   Authenticated,

		OpListUsers:        Staff,
		OpCreateUser:       Staff,
		OpGetUser:          Staff,
		OpDeleteUser:       Staff,
		OpListInvites:      Staff,
		OpCreateInvite:     Staff,
		OpGetInvite:        Staff,
		OpDeleteInvite:     Staff,
		OpDeactivateInvite: Staff,
		OpBanUser:          Staff,
		OpViewStats:        Superuser,
	}
}

// Requirement returns the predicate for op. Unknown operations require a
// superuser so a missing row fails closed.
func (p Policy) Requirement(op Operation) Predicate {
	pred, ok := p[op]
	if !ok {
		return Superuser
	}
	return pred
}

// Check evaluates op for u. It returns an ErrUnauthenticated error when a
// signed-in user is needed and u is nil or inactive, and ErrForbidden when
// u is signed in but lacks the role.
func (p Policy) Check(op Operation, u *model.User) error {
	pred := p.Requirement(op)
	if pred == Public {
		return nil
	}
	if u == nil {
		return apperror.Unauthenticated("Authentication credentials were not provided.")
	}
	if !u.IsActive {
		return apperror.Unauthenticated("User is inactive")
	}
	if !pred.Allows(u) {
		return apperror.Forbidden("You do not have permission to perform this action.")
	}
	return nil
}
