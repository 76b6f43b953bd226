package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/iota-uz/clientdesk/pkg/composables"
	"github.com/iota-uz/clientdesk/pkg/configuration"
	"github.com/iota-uz/clientdesk/pkg/httpapi"
)

const rateLimitPrefix = "clientdesk:ratelimit"

type RateLimitConfig struct {
	RequestsPerPeriod int
	Period            time.Duration
	Store             limiter.Store
	KeyFunc           func(r *http.Request) string
}

func NewMemoryStore() limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          rateLimitPrefix,
		CleanUpInterval: time.Minute,
	})
}

func NewRedisStore(redisURL string) (limiter.Store, error) {
	opts, err := configuration.RedisOptions(redisURL)
	if err != nil {
		return nil, err
	}
	return sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix: rateLimitPrefix,
	})
}

// RateLimit throttles requests per key, which defaults to the tenant and falls
// back to the client address.
func RateLimit(cfg RateLimitConfig) mux.MiddlewareFunc {
	if cfg.Period <= 0 {
		cfg.Period = time.Second
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.KeyFunc == nil {
		header := configuration.Use().RealIPHeader
		cfg.KeyFunc = func(r *http.Request) string {
			if id, err := composables.UseTenantID(r.Context()); err == nil {
				return "tenant:" + id.String()
			}
			ip, _ := realIP(r, header)
			return "ip:" + ip
		}
	}
	rate := limiter.Rate{Period: cfg.Period, Limit: int64(cfg.RequestsPerPeriod)}
	mw := stdlib.NewMiddleware(
		limiter.New(cfg.Store, rate),
		stdlib.WithKeyGetter(cfg.KeyFunc),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			composables.UseLogger(r.Context()).Warn("rate limit reached")
			_ = httpapi.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
		}),
	)
	return func(next http.Handler) http.Handler {
		return mw.Handler(next)
	}
}
