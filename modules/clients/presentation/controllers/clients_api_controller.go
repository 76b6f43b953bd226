package controllers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/modules/clients/services"
	"github.com/iota-uz/clientdesk/pkg/application"
	"github.com/iota-uz/clientdesk/pkg/authz"
	"github.com/iota-uz/clientdesk/pkg/constants"
	"github.com/iota-uz/clientdesk/pkg/httpapi"
	"github.com/iota-uz/clientdesk/pkg/middleware"
)

const (
	defaultMaxImportBytes = 10 << 20
	apiPrefix             = "/clients/api"
)

type ControllerOptions struct {
	TenantHeader   string
	SubjectHeader  string
	MaxImportBytes int64
	// Authz is optional; without it every request is allowed.
	Authz *authz.Service
}

func (o *ControllerOptions) setDefaults() {
	if o.TenantHeader == "" {
		o.TenantHeader = "X-Tenant-ID"
	}
	if o.SubjectHeader == "" {
		o.SubjectHeader = "X-Actor-Role"
	}
	if o.MaxImportBytes <= 0 {
		o.MaxImportBytes = defaultMaxImportBytes
	}
}

type ClientsAPIController struct {
	app         application.Application
	assignments *services.AssignmentService
	imports     *services.ImportService
	exports     *services.ExportService
	opts        ControllerOptions
}

func NewClientsAPIController(app application.Application, opts ControllerOptions) application.Controller {
	opts.setDefaults()
	return &ClientsAPIController{
		app:         app,
		assignments: app.Service(services.AssignmentService{}).(*services.AssignmentService),
		imports:     app.Service(services.ImportService{}).(*services.ImportService),
		exports:     app.Service(services.ExportService{}).(*services.ExportService),
		opts:        opts,
	}
}

func (c *ClientsAPIController) Key() string {
	return apiPrefix
}

func (c *ClientsAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(apiPrefix).Subrouter()
	api.Use(
		middleware.RequireTenant(c.opts.TenantHeader),
		middleware.WithSubject(c.opts.SubjectHeader),
	)

	api.HandleFunc("/assignments", c.GetAssignments).Methods(http.MethodGet)
	api.HandleFunc("/assignments", c.SaveAssignments).Methods(http.MethodPut)
	api.HandleFunc("/assignments:preview", c.PreviewAssignments).Methods(http.MethodPost)

	api.HandleFunc("/import", c.Import).Methods(http.MethodPost)
	api.HandleFunc("/import/template", c.Template).Methods(http.MethodGet)
	api.HandleFunc("/export.csv", c.ExportCSV).Methods(http.MethodGet)
	api.HandleFunc("/export.xlsx", c.ExportXLSX).Methods(http.MethodGet)
	api.HandleFunc("/drive-link", c.DriveLink).Methods(http.MethodGet)

	if hub := c.app.Websocket(); hub != nil {
		api.HandleFunc("/events", c.Events).Methods(http.MethodGet)
	}
}

// clientIDsFromQuery accepts repeated client_id parameters as well as
// comma separated lists.
func clientIDsFromQuery(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["client_id"] {
		for _, part := range strings.Split(v, ",") {
			if id := strings.TrimSpace(part); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

type assignmentsResponse struct {
	State    map[string][]string `json:"state"`
	Selected string              `json:"selected,omitempty"`
}

func (c *ClientsAPIController) GetAssignments(w http.ResponseWriter, r *http.Request) {
	if !ensureClientsAuthz(w, r, c.opts.Authz, clientsAssignmentsAuthzObject, authz.ActionRead) {
		return
	}
	ids := clientIDsFromQuery(r)
	if len(ids) == 0 {
		writeAPIError(w, http.StatusBadRequest, httpapi.CodeInvalidRequest, "client_id is required")
		return
	}

	state, err := c.assignments.Load(r.Context(), ids)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := assignmentsResponse{State: state.Lists()}
	// The deep-link selection is echoed only once it names a loaded client.
	if selected := strings.TrimSpace(r.URL.Query().Get("selected")); selected != "" {
		if _, ok := state[selected]; ok {
			resp.Selected = selected
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type desiredStateRequest struct {
	Desired map[string][]string `json:"desired" validate:"required,min=1"`
}

func (c *ClientsAPIController) decodeDesired(w http.ResponseWriter, r *http.Request) (assignment.StateMap, bool) {
	var req desiredStateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, httpapi.CodeInvalidRequest, "invalid json body")
		return nil, false
	}
	if err := constants.Validate.Struct(&req); err != nil {
		writeAPIError(w, http.StatusUnprocessableEntity, httpapi.CodeValidationFailed, "desired must name at least one client")
		return nil, false
	}
	for clientID := range req.Desired {
		if strings.TrimSpace(clientID) == "" {
			writeAPIError(w, http.StatusUnprocessableEntity, httpapi.CodeValidationFailed, "client id must not be blank")
			return nil, false
		}
	}
	return assignment.FromLists(req.Desired), true
}

type planResponse struct {
	Plan    []assignment.EntityDelta `json:"plan"`
	Adds    int                      `json:"adds"`
	Removes int                      `json:"removes"`
}

func newPlanResponse(plan []assignment.EntityDelta) planResponse {
	if plan == nil {
		plan = []assignment.EntityDelta{}
	}
	adds, removes := assignment.Totals(plan)
	return planResponse{Plan: plan, Adds: adds, Removes: removes}
}

func (c *ClientsAPIController) PreviewAssignments(w http.ResponseWriter, r *http.Request) {
	if !ensureClientsAuthz(w, r, c.opts.Authz, clientsAssignmentsAuthzObject, authz.ActionRead) {
		return
	}
	desired, ok := c.decodeDesired(w, r)
	if !ok {
		return
	}
	plan, err := c.assignments.Preview(r.Context(), desired)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanResponse(plan))
}

type saveResponse struct {
	planResponse
	Batch services.BatchResult   `json:"batch"`
	State map[string][]string    `json:"state"`
	Error *httpapi.ErrorEnvelope `json:"error,omitempty"`
}

// SaveAssignments answers 200 on success. When operations failed after the
// plan was executed it answers 502 and still carries the reloaded state.
func (c *ClientsAPIController) SaveAssignments(w http.ResponseWriter, r *http.Request) {
	if !ensureClientsAuthz(w, r, c.opts.Authz, clientsAssignmentsAuthzObject, authz.ActionWrite) {
		return
	}
	desired, ok := c.decodeDesired(w, r)
	if !ok {
		return
	}

	result, err := c.assignments.Save(r.Context(), desired)
	if err != nil && result.State == nil {
		writeServiceError(w, r, err)
		return
	}

	resp := saveResponse{
		planResponse: newPlanResponse(result.Plan),
		Batch:        result.Batch,
		State:        result.State.Lists(),
	}
	if err != nil {
		_, code := errorStatus(err)
		resp.Error = apiError(requestIDFrom(w), code, err.Error())
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
