package constants

const (
	Admin  = "admin"
	Holder = "holder"
)

// ValidRoles is the set of roles a session can carry.
var ValidRoles = []string{Admin, Holder}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
