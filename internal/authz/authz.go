// Package authz is the optional external policy extension point: a
// relationship-based authorizer consulted only when no local grant
// applies. The engine works fully without one.
package authz

import "context"

type Decision struct {
	Allowed bool
	Reason  string
}

type Request struct {
	UserID       string // e.g. "alice"
	Action       string // e.g. "read"
	ResourceType string // e.g. "contact"
	ResourceID   string // optional instance id
}

// Object renders the request target in object notation, e.g.
// "contact:42", or just the type for type-level checks.
func (r Request) Object() string {
	if r.ResourceID != "" {
		return r.ResourceType + ":" + r.ResourceID
	}
	return r.ResourceType
}

type Authorizer interface {
	Check(ctx context.Context, req Request) (Decision, error)
}
