package shared

// Operator roles, as carried in backend access tokens, that may use the authorization console.
const (
	RoleAdmin       = "ADMIN"
	RoleSystemAdmin = "SYSTEM_ADMIN"
	RoleSpringAdmin = "ROLE_ADMIN"
)

// Session value keys shared by the auth and console layers.
const (
	SessionKeyCompanyID = "company_id"
)

// ConsoleAdminRoles lists the default roles allowed to edit user authorizations.
func ConsoleAdminRoles() []string {
	return []string{
		RoleAdmin,
		RoleSystemAdmin,
		RoleSpringAdmin,
	}
}
