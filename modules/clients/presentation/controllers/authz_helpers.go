package controllers

import (
	"errors"
	"net/http"

	"github.com/iota-uz/clientdesk/pkg/authz"
	"github.com/iota-uz/clientdesk/pkg/composables"
	"github.com/iota-uz/clientdesk/pkg/httpapi"
)

var (
	clientsAssignmentsAuthzObject = authz.ObjectName("clients", "assignments")
	clientsImportAuthzObject      = authz.ObjectName("clients", "import")
	clientsExportAuthzObject      = authz.ObjectName("clients", "export")
)

// ensureClientsAuthz writes a 403 and returns false when the actor may not
// perform action on object. A nil service allows everything.
func ensureClientsAuthz(w http.ResponseWriter, r *http.Request, svc *authz.Service, object, action string) bool {
	if svc == nil {
		return true
	}
	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, httpapi.CodeTenantMissing, err.Error())
		return false
	}
	role, _ := composables.UseSubject(r.Context())
	req := authz.NewRequest(authz.SubjectForRole(role), authz.DomainFromTenant(tenantID), object, action)
	if err := svc.Authorize(r.Context(), req); err != nil {
		if errors.Is(err, authz.ErrForbidden) {
			writeJSON(w, http.StatusForbidden, &httpapi.ErrorEnvelope{
				Code:      httpapi.CodeForbidden,
				Message:   err.Error(),
				RequestID: requestIDFrom(w),
				Meta: map[string]string{
					"object": object,
					"action": req.Action,
				},
			})
			return false
		}
		writeAPIError(w, http.StatusInternalServerError, httpapi.CodeInternal, err.Error())
		return false
	}
	return true
}
