package tlmmodels

// Scope narrows a device read to what an identity may see. The zero value
// is the empty scope: no devices visible.
type Scope struct {
	// All grants visibility of every device; UserID is ignored when set.
	All bool
	// UserID limits visibility to devices the user owns or is mapped to
	// as a viewer.
	UserID string
}

// ScopeAll is the unrestricted scope.
var ScopeAll = Scope{All: true}

// ScopeNone is the empty scope.
var ScopeNone = Scope{}

// ScopeUser returns a scope limited to the given user's devices.
func ScopeUser(userID string) Scope {
	return Scope{UserID: userID}
}

// Empty reports whether the scope matches no devices at all.
func (s Scope) Empty() bool {
	return !s.All && s.UserID == ""
}
