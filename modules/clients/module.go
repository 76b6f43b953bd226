package clients

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/clientdesk/modules/clients/infrastructure/changefeed"
	"github.com/iota-uz/clientdesk/modules/clients/infrastructure/persistence"
	"github.com/iota-uz/clientdesk/modules/clients/presentation/controllers"
	"github.com/iota-uz/clientdesk/modules/clients/services"
	"github.com/iota-uz/clientdesk/pkg/application"
	"github.com/iota-uz/clientdesk/pkg/authz"
	"github.com/iota-uz/clientdesk/pkg/configuration"
)

type ModuleOptions struct {
	Clients       configuration.ClientsOptions
	TenantHeader  string
	SubjectHeader string
	Authz         *authz.Service
	// Redis enables cross-instance change feed relaying when set.
	Redis *redis.Client
}

func NewModule(opts *ModuleOptions) *Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{opts: opts}
}

type Module struct {
	opts    *ModuleOptions
	bridge  *changefeed.Bridge
	unsubWS func()
}

func (m *Module) Register(app application.Application) error {
	logger := app.Logger().WithField("module", m.Name())
	cfg := m.opts.Clients

	assignments := persistence.NewAssignmentRepository()
	clients := persistence.NewClientRepository()
	bus := app.EventPublisher()

	app.RegisterServices(
		services.NewAssignmentService(
			services.NewStateLoader(assignments, services.LoaderOptions{
				ChunkSize:  cfg.ReadChunkSize,
				PageSize:   cfg.ReadPageSize,
				ChunkDelay: cfg.ReadChunkDelay,
				Logger:     logger.WithField("component", "clients.loader"),
			}),
			services.NewBatchExecutor(assignments, services.ExecutorOptions{
				MaxInFlight: cfg.MaxInFlight,
				Logger:      logger.WithField("component", "clients.executor"),
			}),
			bus,
		),
		services.NewImportService(clients, bus),
		services.NewExportService(clients),
	)

	m.bridge = changefeed.NewBridge(bus, changefeed.Options{
		Redis:   m.opts.Redis,
		Channel: cfg.ChangefeedChannel,
		Logger:  logger,
	})
	if err := m.bridge.Start(context.Background()); err != nil {
		return err
	}
	if hub := app.Websocket(); hub != nil {
		m.unsubWS = controllers.ForwardEnvelopes(bus, hub, logger.WithField("component", "clients.events"))
	}

	app.RegisterControllers(
		controllers.NewClientsAPIController(app, controllers.ControllerOptions{
			TenantHeader:   m.opts.TenantHeader,
			SubjectHeader:  m.opts.SubjectHeader,
			MaxImportBytes: cfg.MaxImportBytes,
			Authz:          m.opts.Authz,
		}),
	)
	logger.WithFields(logrus.Fields{
		"changefeed_redis": m.opts.Redis != nil,
		"origin":           m.bridge.Origin(),
	}).Info("clients module registered")
	return nil
}

// Close stops the change feed.
func (m *Module) Close() {
	if m.unsubWS != nil {
		m.unsubWS()
	}
	if m.bridge != nil {
		m.bridge.Stop()
	}
}

func (m *Module) Name() string {
	return "clients"
}
