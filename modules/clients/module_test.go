package clients

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/modules/clients/infrastructure/changefeed"
	"github.com/iota-uz/clientdesk/modules/clients/services"
	"github.com/iota-uz/clientdesk/pkg/application"
)

func TestModule_RegistersServicesAndRoutes(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	app := application.New(&application.ApplicationOptions{Logger: logger})

	mod := NewModule(nil)
	require.NoError(t, app.RegisterModules(mod))
	defer mod.Close()

	assert.NotNil(t, app.Service(services.AssignmentService{}))
	assert.NotNil(t, app.Service(services.ImportService{}))
	assert.NotNil(t, app.Service(services.ExportService{}))

	r := mux.NewRouter()
	for _, c := range app.Controllers() {
		c.Register(r)
	}
	req := httptest.NewRequest(http.MethodGet, "/clients/api/drive-link?value=abc", nil)
	req.Header.Set("X-Tenant-ID", uuid.NewString())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestModule_BridgesDomainEventsWithoutRedis(t *testing.T) {
	app := application.New(&application.ApplicationOptions{Logger: logrus.New()})
	mod := NewModule(nil)
	require.NoError(t, app.RegisterModules(mod))
	defer mod.Close()

	var got []*changefeed.Envelope
	unsub := app.EventPublisher().Subscribe(func(e *changefeed.Envelope) { got = append(got, e) })
	defer unsub()

	tenantID := uuid.New()
	app.EventPublisher().Publish(&assignment.ChangedEvent{TenantID: tenantID, ClientIDs: []string{"c1"}, Added: 2, At: time.Now()})

	require.Len(t, got, 1)
	assert.Equal(t, changefeed.KindAssignmentsChanged, got[0].Kind)
	assert.Equal(t, tenantID, got[0].TenantID)
	var payload assignment.ChangedEvent
	require.NoError(t, json.Unmarshal(got[0].Payload, &payload))
	assert.Equal(t, 2, payload.Added)
}
