// Package access provides caller identity and resource-level access control
// for the gateway. Catalog listings and routing decisions consult this package
// to decide which models and knowledge bases a caller may see or use.
package access

// Role constants for caller identities.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Caller is a verified caller identity produced by the authentication layer.
// The gateway never authenticates callers itself; it receives a Caller from
// the auth middleware and threads it through routing, filtering, and the
// identity headers forwarded to upstream connections.
type Caller struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the caller has the admin role.
func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// Control describes who may read or write a resource. A nil *Control means
// the resource is public for reading and writable only by its owner.
type Control struct {
	Read  Grant `json:"read"`
	Write Grant `json:"write"`
}

// Grant lists the user and group ids holding a permission.
type Grant struct {
	UserIDs  []string `json:"user_ids"`
	GroupIDs []string `json:"group_ids"`
}

// GroupResolver reports the group ids a user belongs to. The gateway does not
// own group membership; deployments plug in their directory here.
type GroupResolver func(userID string) []string

// Checker decides whether a caller may perform an operation on a resource,
// given the resource's access control record.
type Checker interface {
	HasAccess(userID string, mode string, control *Control) bool
}

// ACLChecker is the default Checker. It grants access when the user id is
// listed directly, or when any of the user's groups is listed. A nil control
// record grants read to everyone and write to no one.
type ACLChecker struct {
	// Groups resolves group membership; may be nil.
	Groups GroupResolver
}

// HasAccess implements Checker.
func (c *ACLChecker) HasAccess(userID string, mode string, control *Control) bool {
	if control == nil {
		return mode == "read"
	}

	var grant Grant
	switch mode {
	case "read":
		grant = control.Read
	case "write":
		grant = control.Write
	default:
		return false
	}

	for _, id := range grant.UserIDs {
		if id == userID {
			return true
		}
	}

	if c.Groups != nil {
		member := map[string]struct{}{}
		for _, g := range c.Groups(userID) {
			member[g] = struct{}{}
		}
		for _, g := range grant.GroupIDs {
			if _, ok := member[g]; ok {
				return true
			}
		}
	}

	return false
}
