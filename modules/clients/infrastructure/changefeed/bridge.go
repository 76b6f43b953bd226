// Package changefeed turns domain events into tenant-scoped envelopes and
// relays them between instances over Redis pub/sub.
package changefeed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/modules/clients/domain/entities/client"
	"github.com/iota-uz/clientdesk/pkg/eventbus"
)

const (
	KindAssignmentsChanged = "assignments.changed"
	KindClientsImported    = "clients.imported"
)

// Envelope is what subscribers (websocket streams) receive.
type Envelope struct {
	Kind     string          `json:"kind"`
	TenantID uuid.UUID       `json:"tenant_id"`
	Origin   string          `json:"origin"`
	At       time.Time       `json:"at"`
	Payload  json.RawMessage `json:"payload"`
}

type Options struct {
	// Redis is optional; without it envelopes stay in-process.
	Redis          *redis.Client
	Channel        string
	Logger         *logrus.Entry
	PublishTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.Channel == "" {
		o.Channel = "clientdesk:changes"
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 2 * time.Second
	}
}

type Bridge struct {
	bus    eventbus.EventBus
	opts   Options
	origin string
	log    *logrus.Entry

	mu     sync.Mutex
	unsubs []func()
	cancel context.CancelFunc
	done   chan struct{}
}

func NewBridge(bus eventbus.EventBus, opts Options) *Bridge {
	opts.setDefaults()
	origin := uuid.NewString()
	return &Bridge{
		bus:    bus,
		opts:   opts,
		origin: origin,
		log:    opts.Logger.WithFields(logrus.Fields{"component": "changefeed", "origin": origin}),
	}
}

func (b *Bridge) Origin() string { return b.origin }

// Start subscribes to domain events and, when Redis is configured, begins
// relaying envelopes from other instances.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil
	}

	var sub *redis.PubSub
	if b.opts.Redis != nil {
		sub = b.opts.Redis.Subscribe(ctx, b.opts.Channel)
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			return errors.Wrapf(err, "subscribe %s", b.opts.Channel)
		}
	}

	b.unsubs = append(b.unsubs,
		b.bus.Subscribe(func(e *assignment.ChangedEvent) {
			b.forward(KindAssignmentsChanged, e.TenantID, e.At, e)
		}),
		b.bus.Subscribe(func(e *client.ImportedEvent) {
			b.forward(KindClientsImported, e.TenantID, e.At, e)
		}),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	if sub == nil {
		close(b.done)
		return nil
	}
	go b.receive(runCtx, sub)
	return nil
}

func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	if b.cancel != nil {
		b.cancel()
		<-b.done
		b.cancel = nil
	}
}

func (b *Bridge) forward(kind string, tenantID uuid.UUID, at time.Time, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.log.WithError(err).WithField("kind", kind).Error("changefeed: marshal payload")
		return
	}
	env := &Envelope{Kind: kind, TenantID: tenantID, Origin: b.origin, At: at, Payload: raw}
	b.bus.Publish(env)

	if b.opts.Redis == nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		b.log.WithError(err).Error("changefeed: marshal envelope")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.opts.PublishTimeout)
	defer cancel()
	if err := b.opts.Redis.Publish(ctx, b.opts.Channel, data).Err(); err != nil {
		b.log.WithError(err).WithField("kind", kind).Warn("changefeed: redis publish failed")
	}
}

func (b *Bridge) receive(ctx context.Context, sub *redis.PubSub) {
	defer close(b.done)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handleRemote(msg.Payload)
		}
	}
}

func (b *Bridge) handleRemote(payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.WithError(err).Warn("changefeed: drop malformed envelope")
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.bus.Publish(&env)
}
