package controllers

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/clientdesk/modules/clients/infrastructure/changefeed"
	"github.com/iota-uz/clientdesk/pkg/application"
	"github.com/iota-uz/clientdesk/pkg/eventbus"
)

// ForwardEnvelopes pushes every change feed envelope published on bus to the
// websocket connections of its tenant. The returned func unsubscribes.
func ForwardEnvelopes(bus eventbus.EventBus, hub application.Huber, logger *logrus.Entry) func() {
	return bus.Subscribe(func(env *changefeed.Envelope) {
		data, err := json.Marshal(env)
		if err != nil {
			logger.WithError(err).Error("marshal change feed envelope")
			return
		}
		n := hub.Broadcast(env.TenantID, data)
		logger.WithFields(logrus.Fields{
			"kind":      env.Kind,
			"tenant_id": env.TenantID,
			"receivers": n,
		}).Debug("change feed envelope pushed")
	})
}
