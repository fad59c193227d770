package messages

// Role is the viewer role claim attached to an authenticated principal.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
	RoleClient     Role = "client"
)

// ParseRole normalizes a raw role claim. Unknown roles are rejected rather
// than defaulted so a typo never grants elevated visibility.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin, RoleSuperAdmin, RoleClient:
		return Role(raw), true
	}
	return "", false
}

// Elevated reports whether the role may observe private records.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Visible returns the subset of msgs the given role may observe. Elevated
// roles see everything; every other role never sees a private record or an
// internal note. Both conditions are checked independently. The function is
// pure and idempotent; it must be applied at every boundary where messages
// cross into a client-facing context.
func Visible(msgs []Message, role Role) []Message {
	if role.Elevated() {
		out := make([]Message, len(msgs))
		copy(out, msgs)
		return out
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsPrivate() {
			continue
		}
		if m.Type == TypeInternalNote {
			continue
		}
		out = append(out, m)
	}
	return out
}
