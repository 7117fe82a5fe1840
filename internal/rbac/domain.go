// Package rbac maps roles to permissions and enforces them on HTTP routes.
package rbac

import (
	"strings"

	"github.com/iris-crm/iris/internal/crm"
)

// Permission names follow module.entity.action.
const (
	PermCustomerView  = "crm.customer.view"
	PermCustomerEdit  = "crm.customer.edit"
	PermEnquiryView   = "crm.enquiry.view"
	PermEnquiryEdit   = "crm.enquiry.edit"
	PermQuoteView     = "crm.quote.view"
	PermQuoteEdit     = "crm.quote.edit"
	PermQuoteApprove  = "crm.quote.approve"
	PermJobView       = "crm.job.view"
	PermJobEdit       = "crm.job.edit"
	PermJobUpdate     = "crm.job.update"
	PermInvoiceView   = "crm.invoice.view"
	PermInvoiceEdit   = "crm.invoice.edit"
	PermInventoryView = "crm.inventory.view"
	PermInventoryEdit = "crm.inventory.edit"
	PermUserAdmin     = "crm.user.admin"
)

// rolePermissions is the closed role-to-permission map. The installer role
// sees only job surfaces; the bookkeeper only the invoicing surfaces.
var rolePermissions = map[crm.Role][]string{
	crm.RoleAdmin: {
		PermCustomerView, PermCustomerEdit,
		PermEnquiryView, PermEnquiryEdit,
		PermQuoteView, PermQuoteEdit, PermQuoteApprove,
		PermJobView, PermJobEdit, PermJobUpdate,
		PermInvoiceView, PermInvoiceEdit,
		PermInventoryView, PermInventoryEdit,
		PermUserAdmin,
	},
	crm.RoleSales: {
		PermCustomerView, PermCustomerEdit,
		PermEnquiryView, PermEnquiryEdit,
		PermQuoteView, PermQuoteEdit, PermQuoteApprove,
		PermJobView, PermJobEdit,
		PermInventoryView,
	},
	crm.RoleBookkeeper: {
		PermCustomerView,
		PermQuoteView,
		PermJobView,
		PermInvoiceView, PermInvoiceEdit,
	},
	crm.RoleInstaller: {
		PermJobView, PermJobUpdate,
		PermInventoryView,
	},
}

// PermissionsForRole returns the permission set granted to a role.
func PermissionsForRole(role crm.Role) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// RoleHas reports whether the role grants the permission.
func RoleHas(role crm.Role, perm string) bool {
	perm = strings.ToLower(strings.TrimSpace(perm))
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
