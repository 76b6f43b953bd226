package constants

import "github.com/go-playground/validator/v10"

type contextKey string

const (
	AppKey       contextKey = "app"
	PoolKey      contextKey = "pool"
	TxKey        contextKey = "tx"
	TenantIDKey  contextKey = "tenantID"
	LoggerKey    contextKey = "logger"
	RequestStart contextKey = "requestStart"
	SubjectKey   contextKey = "authzSubject"
)

// Validate is the shared validator instance; it caches struct metadata, so keep a single one.
var Validate = validator.New(validator.WithRequiredStructEnabled())
