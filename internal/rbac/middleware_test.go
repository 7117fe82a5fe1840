package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iris-crm/iris/internal/crm"
)

func TestPermissionsForRole(t *testing.T) {
	assert.True(t, RoleHas(crm.RoleBookkeeper, PermInvoiceEdit))
	assert.False(t, RoleHas(crm.RoleBookkeeper, PermQuoteEdit))
	assert.True(t, RoleHas(crm.RoleInstaller, PermJobUpdate))
	assert.False(t, RoleHas(crm.RoleInstaller, PermCustomerView))
	assert.True(t, RoleHas(crm.RoleAdmin, PermUserAdmin))
}

func TestRequireAnyForbidsWithoutSession(t *testing.T) {
	mw := Middleware{}
	handler := mw.RequireAny(PermQuoteView)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/quotes", nil))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}
