package types

import (
	"time"
)

// AppConfig is the root configuration for the picker gateway and CLI
type AppConfig struct {
	DebugMode  bool `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool `key:"prettyLogs" json:"pretty_logs"`

	Gateway  GatewayConfig  `key:"gateway" json:"gateway"`
	Backend  BackendConfig  `key:"backend" json:"backend"`
	Auth     AuthConfig     `key:"auth" json:"auth"`
	Drive    DriveConfig    `key:"drive" json:"drive"`
	Client   ClientConfig   `key:"client" json:"client"`
	Database DatabaseConfig `key:"database" json:"database"`
}

// ----------------------------------------------------------------------------
// Gateway Configuration
// ----------------------------------------------------------------------------

type GatewayConfig struct {
	HTTP            HTTPConfig    `key:"http" json:"http"`
	ShutdownTimeout time.Duration `key:"shutdownTimeout" json:"shutdown_timeout"`
}

type HTTPConfig struct {
	Host             string     `key:"host" json:"host"`
	Port             int        `key:"port" json:"port"`
	EnablePrettyLogs bool       `key:"enablePrettyLogs" json:"enable_pretty_logs"`
	CORS             CORSConfig `key:"cors" json:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `key:"allowOrigins" json:"allow_origins"`
	AllowedMethods []string `key:"allowMethods" json:"allow_methods"`
	AllowedHeaders []string `key:"allowHeaders" json:"allow_headers"`
}

// ----------------------------------------------------------------------------
// Backend Configuration
// ----------------------------------------------------------------------------

// BackendConfig points at the resource/connection/knowledge-base API
type BackendConfig struct {
	URL             string        `key:"url" json:"url"`
	APIPrefix       string        `key:"apiPrefix" json:"api_prefix"`
	KnowledgeBaseID string        `key:"knowledgeBaseId" json:"knowledge_base_id"`
	Timeout         time.Duration `key:"timeout" json:"timeout"`
}

// AuthConfig configures the password-grant login against the identity provider
type AuthConfig struct {
	URL      string `key:"url" json:"url"`
	AnonKey  string `key:"anonKey" json:"anon_key"`
	Email    string `key:"email" json:"email"`
	Password string `key:"password" json:"-"`
}

// DriveConfig configures the drive routes
type DriveConfig struct {
	ConnectionProvider string `key:"connectionProvider" json:"connection_provider"` // e.g. "gdrive"
	DefaultPageSize    int    `key:"defaultPageSize" json:"default_page_size"`
}

// ----------------------------------------------------------------------------
// Client Configuration
// ----------------------------------------------------------------------------

// ClientConfig configures the picker client (CLI)
type ClientConfig struct {
	GatewayURL  string            `key:"gatewayUrl" json:"gateway_url"`
	PageSize    int               `key:"pageSize" json:"page_size"`
	Timeout     time.Duration     `key:"timeout" json:"timeout"`
	StatusCache StatusCacheConfig `key:"statusCache" json:"status_cache"`
}

type StatusCacheBackend string

const (
	StatusCacheMemory StatusCacheBackend = "memory"
	StatusCacheRedis  StatusCacheBackend = "redis"
)

// StatusCacheConfig selects the store behind the knowledge-base status cache.
// A zero TTL keeps entries until they are invalidated.
type StatusCacheConfig struct {
	Backend StatusCacheBackend `key:"backend" json:"backend"`
	Size    int                `key:"size" json:"size"`
	TTL     time.Duration      `key:"ttl" json:"ttl"`
}

// ----------------------------------------------------------------------------
// Database Configuration
// ----------------------------------------------------------------------------

type DatabaseConfig struct {
	Redis RedisConfig `key:"redis" json:"redis"`
}

type RedisMode string

const (
	RedisModeSingle  RedisMode = "single"
	RedisModeCluster RedisMode = "cluster"
)

type RedisConfig struct {
	Mode               RedisMode     `key:"mode" json:"mode"`
	Addrs              []string      `key:"addrs" json:"addrs"`
	Username           string        `key:"username" json:"username"`
	Password           string        `key:"password" json:"password"`
	ClientName         string        `key:"clientName" json:"client_name"`
	EnableTLS          bool          `key:"enableTLS" json:"enable_tls"`
	InsecureSkipVerify bool          `key:"insecureSkipVerify" json:"insecure_skip_verify"`
	PoolSize           int           `key:"poolSize" json:"pool_size"`
	DialTimeout        time.Duration `key:"dialTimeout" json:"dial_timeout"`
	ReadTimeout        time.Duration `key:"readTimeout" json:"read_timeout"`
	WriteTimeout       time.Duration `key:"writeTimeout" json:"write_timeout"`
	MaxRetries         int           `key:"maxRetries" json:"max_retries"`
}

// ----------------------------------------------------------------------------
// Environment bindings
// ----------------------------------------------------------------------------

// EnvBindings maps environment variables onto config keys
var EnvBindings = map[string]string{
	"PICKER_DEBUG_MODE":        "debugMode",
	"PICKER_PRETTY_LOGS":       "prettyLogs",
	"PICKER_HTTP_HOST":         "gateway.http.host",
	"PICKER_HTTP_PORT":         "gateway.http.port",
	"PICKER_BACKEND_URL":       "backend.url",
	"PICKER_API_PREFIX":        "backend.apiPrefix",
	"PICKER_KNOWLEDGE_BASE_ID": "backend.knowledgeBaseId",
	"PICKER_AUTH_URL":          "auth.url",
	"PICKER_AUTH_ANON_KEY":     "auth.anonKey",
	"PICKER_SERVICE_EMAIL":     "auth.email",
	"PICKER_SERVICE_PASSWORD":  "auth.password",
	"PICKER_GATEWAY_URL":       "client.gatewayUrl",
	"PICKER_STATUS_CACHE":      "client.statusCache.backend",
	"PICKER_REDIS_ADDRS":       "database.redis.addrs",
	"PICKER_REDIS_PASSWORD":    "database.redis.password",
}

// EnvVarFor returns the environment variable bound to a config key
func EnvVarFor(key string) string {
	for env, k := range EnvBindings {
		if k == key {
			return env
		}
	}
	return ""
}

// RequireValue returns a ConfigError naming the variable when value is empty
func RequireValue(key, value string) error {
	if value != "" {
		return nil
	}
	return &ConfigError{Key: key, Variable: EnvVarFor(key)}
}
