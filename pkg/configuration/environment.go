package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/clientdesk/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the given env files. Relative names are looked up in the working
// directory first and then in the nearest parent directory holding a go.mod.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	root := findModuleRoot()
	for _, file := range envFiles {
		if fileExists(file) {
			existingFiles = append(existingFiles, file)
			continue
		}
		if root == "" || filepath.IsAbs(file) {
			continue
		}
		if candidate := filepath.Join(root, file); fileExists(candidate) {
			existingFiles = append(existingFiles, candidate)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func findModuleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"clientdesk"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type LogOptions struct {
	Path       string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"clientdesk"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"1000"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.GlobalRPS > 1000000 {
		return fmt.Errorf("rate limit GlobalRPS too high, maximum is 1,000,000, got %d", r.GlobalRPS)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type AuthzOptions struct {
	ModelPath      string `env:"AUTHZ_MODEL_PATH"`
	PolicyPath     string `env:"AUTHZ_POLICY_PATH"`
	FlagConfigPath string `env:"AUTHZ_FLAG_CONFIG_PATH"`
	Mode           string `env:"AUTHZ_MODE" envDefault:"shadow"`
	SubjectHeader  string `env:"AUTHZ_SUBJECT_HEADER" envDefault:"X-Actor-Role"`
}

// ClientsOptions tunes the assignment reconciliation pipeline and the CSV import.
type ClientsOptions struct {
	ReadChunkSize     int           `env:"CLIENTS_READ_CHUNK_SIZE" envDefault:"100"`
	ReadPageSize      int           `env:"CLIENTS_READ_PAGE_SIZE" envDefault:"1000"`
	ReadChunkDelay    time.Duration `env:"CLIENTS_READ_CHUNK_DELAY" envDefault:"50ms"`
	MaxInFlight       int           `env:"CLIENTS_MAX_IN_FLIGHT" envDefault:"16"`
	MaxImportBytes    int64         `env:"CLIENTS_MAX_IMPORT_BYTES" envDefault:"10485760"`
	ChangefeedChannel string        `env:"CLIENTS_CHANGEFEED_CHANNEL" envDefault:"clientdesk:changes"`
	ChangefeedEnabled bool          `env:"CLIENTS_CHANGEFEED_ENABLED" envDefault:"false"`
}

func (o *ClientsOptions) Validate() error {
	if o.ReadChunkSize <= 0 {
		return fmt.Errorf("CLIENTS_READ_CHUNK_SIZE must be positive, got %d", o.ReadChunkSize)
	}
	if o.ReadPageSize <= 0 {
		return fmt.Errorf("CLIENTS_READ_PAGE_SIZE must be positive, got %d", o.ReadPageSize)
	}
	if o.ReadChunkDelay < 0 {
		return fmt.Errorf("CLIENTS_READ_CHUNK_DELAY must be non-negative, got %s", o.ReadChunkDelay)
	}
	if o.MaxInFlight <= 0 {
		return fmt.Errorf("CLIENTS_MAX_IN_FLIGHT must be positive, got %d", o.MaxInFlight)
	}
	if o.MaxImportBytes <= 0 {
		return fmt.Errorf("CLIENTS_MAX_IMPORT_BYTES must be positive, got %d", o.MaxImportBytes)
	}
	return nil
}

type Configuration struct {
	Database      DatabaseOptions
	Log           LogOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	Authz         AuthzOptions
	Clients       ClientsOptions

	RedisURL         string `env:"REDIS_URL" envDefault:"localhost:6379"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	Domain           string `env:"DOMAIN" envDefault:"localhost"`
	Origin           string `env:"ORIGIN" envDefault:"http://localhost:3200"`
	AllowedOrigins   string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	// The service looks for this header in the request, if it's not present, it will generate a random uuidv4
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// The service looks for this header in the request, if it's not present, it will use request.RemoteAddr
	RealIPHeader string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`
	// Upstream gateways pass the resolved tenant in this header.
	TenantIDHeader string `env:"TENANT_ID_HEADER" envDefault:"X-Tenant-ID"`

	// Ops guard protects operational endpoints (metrics) in production.
	OpsGuardEnabled       bool   `env:"OPS_GUARD_ENABLED" envDefault:"true"`
	OpsGuardCIDRs         string `env:"OPS_GUARD_CIDRS"`
	OpsGuardToken         string `env:"OPS_GUARD_TOKEN"`
	OpsGuardBasicAuthUser string `env:"OPS_GUARD_BASIC_AUTH_USER"`
	OpsGuardBasicAuthPass string `env:"OPS_GUARD_BASIC_AUTH_PASS"`

	// RLS enforcement mode (disabled/enforce).
	RLSEnforce string `env:"RLS_ENFORCE" envDefault:"disabled"`

	logCloser func() error
	logger    *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) Scheme() string {
	if c.GoAppEnvironment == Production { // assume 'https' on production mode
		return "https"
	}
	return "http"
}

// Origins splits ALLOWED_ORIGINS into a list.
func (c *Configuration) Origins() []string {
	var out []string
	for _, part := range strings.Split(c.AllowedOrigins, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// RedisOptions accepts either a redis:// URL or a bare host:port address.
func RedisOptions(raw string) (*redis.Options, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	if strings.Contains(raw, "://") {
		return redis.ParseURL(raw)
	}
	return &redis.Options{Addr: raw}, nil
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.Clients.Validate(); err != nil {
		return fmt.Errorf("clients configuration error: %w", err)
	}
	if err := c.validateRLS(); err != nil {
		return err
	}
	if err := c.validateAuthz(); err != nil {
		return err
	}

	closer, logger, err := logging.FileLogger(c.LogrusLogLevel(), logging.FileOptions{
		Path:       c.Log.Path,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	})
	if err != nil {
		return err
	}
	c.logCloser = closer
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	if os.Getenv("ORIGIN") == "" {
		if c.GoAppEnvironment == "development" {
			c.Origin = fmt.Sprintf("%s://%s:%d", c.Scheme(), c.Domain, c.ServerPort)
		} else {
			c.Origin = fmt.Sprintf("%s://%s", c.Scheme(), c.Domain)
		}
	}

	return nil
}

func (c *Configuration) validateRLS() error {
	mode := strings.ToLower(strings.TrimSpace(c.RLSEnforce))
	if mode == "" {
		mode = "disabled"
	}
	switch mode {
	case "disabled", "enforce":
	default:
		return fmt.Errorf("invalid RLS_ENFORCE=%q (expected disabled|enforce)", c.RLSEnforce)
	}

	if mode == "enforce" && strings.EqualFold(strings.TrimSpace(c.Database.User), "postgres") {
		return fmt.Errorf("RLS_ENFORCE=enforce requires a non-superuser DB_USER (postgres will bypass RLS)")
	}

	c.RLSEnforce = mode
	return nil
}

func (c *Configuration) validateAuthz() error {
	mode := strings.ToLower(strings.TrimSpace(c.Authz.Mode))
	if mode == "" {
		mode = "shadow"
	}
	switch mode {
	case "disabled", "shadow", "enforce":
	default:
		return fmt.Errorf("invalid AUTHZ_MODE=%q (expected disabled|shadow|enforce)", c.Authz.Mode)
	}
	c.Authz.Mode = mode
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logCloser != nil {
		if err := c.logCloser(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
