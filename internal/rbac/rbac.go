package rbac

import "github.com/pushit/marketplace/internal/models"

// Permission constants
const (
	PermManageCampaign  = "manage_campaign"
	PermReviewJob       = "review_job"
	PermFundWallet      = "fund_wallet"
	PermApplyJob        = "apply_job"
	PermSubmitProof     = "submit_proof"
	PermWithdraw        = "withdraw"
	PermConnectPlatform = "connect_platform"
	PermManageAccounts  = "manage_accounts"
	PermAdjustWallet    = "adjust_wallet"
	PermManageSettings  = "manage_settings"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	models.RoleBrand: {
		PermManageCampaign, PermReviewJob, PermFundWallet,
	},
	models.RoleInfluencer: {
		PermApplyJob, PermSubmitProof, PermWithdraw, PermConnectPlatform,
	},
	models.RoleAdmin: {
		PermManageCampaign, PermReviewJob,
		PermManageAccounts, PermAdjustWallet, PermManageSettings,
		// Admin CANNOT: PermWithdraw, PermFundWallet, PermApplyJob (no wallet of its own)
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsFinancialOperation reports permissions that move money out of the platform
// or into a user's wallet.
func IsFinancialOperation(permission string) bool {
	return permission == PermWithdraw || permission == PermFundWallet || permission == PermAdjustWallet
}
