package rbac

import (
	"testing"

	"github.com/pushit/marketplace/internal/models"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role     string
		perm     string
		expected bool
	}{
		{models.RoleBrand, PermManageCampaign, true},
		{models.RoleBrand, PermFundWallet, true},
		{models.RoleBrand, PermWithdraw, false},
		{models.RoleBrand, PermApplyJob, false},
		{models.RoleInfluencer, PermApplyJob, true},
		{models.RoleInfluencer, PermWithdraw, true},
		{models.RoleInfluencer, PermManageCampaign, false},
		{models.RoleAdmin, PermAdjustWallet, true},
		{models.RoleAdmin, PermReviewJob, true},
		{models.RoleAdmin, PermWithdraw, false},
		{"guest", PermApplyJob, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.perm, func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.expected {
				t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.expected)
			}
		})
	}
}

func TestIsFinancialOperation(t *testing.T) {
	if !IsFinancialOperation(PermWithdraw) || !IsFinancialOperation(PermAdjustWallet) {
		t.Error("withdraw and adjust_wallet are financial")
	}
	if IsFinancialOperation(PermSubmitProof) {
		t.Error("submit_proof is not financial")
	}
}
