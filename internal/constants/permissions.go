package constants

const (
	ApproveTransactions = "approve_transactions"
	ManageHolders       = "manage_holders"
	ManageTokens        = "manage_tokens"
	AssignBalances      = "assign_balances"
	ViewReports         = "view_reports"
	RequestTransactions = "request_transactions"
	ViewPortfolio       = "view_portfolio"
)

// PermissionRoles maps each permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ApproveTransactions: {Admin},
	ManageHolders:       {Admin},
	ManageTokens:        {Admin},
	AssignBalances:      {Admin},
	ViewReports:         {Admin},
	RequestTransactions: {Holder},
	ViewPortfolio:       {Holder},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
