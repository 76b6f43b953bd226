package modules

import (
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/clientdesk/modules/clients"
	"github.com/iota-uz/clientdesk/pkg/application"
	"github.com/iota-uz/clientdesk/pkg/authz"
	"github.com/iota-uz/clientdesk/pkg/configuration"
)

// BuiltInModules returns the modules every server instance loads.
func BuiltInModules(conf *configuration.Configuration, authzSvc *authz.Service, rdb *redis.Client) []application.Module {
	return []application.Module{
		clients.NewModule(&clients.ModuleOptions{
			Clients:       conf.Clients,
			TenantHeader:  conf.TenantIDHeader,
			SubjectHeader: conf.Authz.SubjectHeader,
			Authz:         authzSvc,
			Redis:         rdb,
		}),
	}
}

func Load(app application.Application, externalModules ...application.Module) error {
	return app.RegisterModules(externalModules...)
}
