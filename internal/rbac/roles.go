package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner             = "owner"
	RoleOperator          = "operator" // dispatches campaigns, places calls
	RoleAnalyst           = "analyst"  // read-only access to calls and transcripts
	RoleSuperAdmin        = "super_admin"
	RoleTelephonyOperator = "telephony_operator" // hidden role for carrier-side tooling
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleTelephonyOperator }
