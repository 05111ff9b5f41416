package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/hybridex/internal/domain/auth"
	"github.com/kailas-cloud/hybridex/internal/domain/backend"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/schema/field"
)

// Identity providers for bearer tokens.
const (
	IdentityNone = "none"
	IdentityJWT  = "jwt"
	IdentityOIDC = "oidc"
)

// Config holds the hybridex server configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Backend   BackendConfig   `yaml:"backend"`
	Schema    SchemaConfig    `yaml:"schema"`
	Search    SearchConfig    `yaml:"search"`
	Index     IndexConfig     `yaml:"index"`
	Auth      AuthConfig      `yaml:"auth"`
	Curation  CurationConfig  `yaml:"curation"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	S3        S3Config        `yaml:"s3"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// BackendConfig selects and configures the backing store.
type BackendConfig struct {
	Driver           string   `yaml:"driver"` // embedded, redis, valkey (default: embedded)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	RequestTimeoutMs int      `yaml:"request_timeout_ms"`
	CandidateWindow  int      `yaml:"candidate_window"`
	Path             string   `yaml:"path"` // embedded only; empty keeps data in memory
}

// SchemaConfig describes the index: metric, encoders and filterable tags.
type SchemaConfig struct {
	Metric   string                   `yaml:"metric"`
	Encoders map[string]EncoderConfig `yaml:"encoders"`
	Filters  []FilterConfig           `yaml:"filters"`
}

// EncoderConfig is one vector space. Provider is optional; without one queries must carry vectors.
type EncoderConfig struct {
	Dimensions  int                  `yaml:"dimensions"`
	Provider    string               `yaml:"provider"`
	Model       string               `yaml:"model"`
	Instruction string               `yaml:"instruction"`
	Fields      []IndexedFieldConfig `yaml:"fields"`
}

// IndexedFieldConfig is a document field embedded by an encoder.
type IndexedFieldConfig struct {
	Name     string `yaml:"name"`
	Modality string `yaml:"modality"`
}

// FilterConfig declares a tag the backing store indexes for filtering.
type FilterConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // tag, numeric
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
	Overfetch    int `yaml:"chunk_overfetch"`
	TimeoutMs    int `yaml:"timeout_ms"`
	TopTags      int `yaml:"top_tags"`
}

// IndexConfig holds write path settings.
type IndexConfig struct {
	MaxBatchSize         int     `yaml:"max_batch_size"`
	Workers              int     `yaml:"materialize_workers"`
	MaterializeRate      float64 `yaml:"materialize_rate"` // per second, 0 = unlimited
	MaterializeBurst     int     `yaml:"materialize_burst"`
	MaterializeTimeoutMs int     `yaml:"materialize_timeout_ms"`
	MaterializeMaxBytes  int64   `yaml:"materialize_max_bytes"`
	AllowHTTP            bool    `yaml:"allow_http"`
	DefaultPageSize      int     `yaml:"default_page_size"`
	MaxPageSize          int     `yaml:"max_page_size"`
}

// AuthConfig holds the allow-list store and the bearer token identity provider.
type AuthConfig struct {
	AllowlistFile    string          `yaml:"allowlist_file"`
	Provider         string          `yaml:"provider"` // none, jwt, oidc (default: none)
	HMACSecret       string          `yaml:"hmac_secret"`
	RSAPublicKeyFile string          `yaml:"rsa_public_key_file"`
	Issuer           string          `yaml:"issuer"`
	Audience         string          `yaml:"audience"`
	ClientID         string          `yaml:"client_id"`
	EmailClaim       string          `yaml:"email_claim"`
	Bootstrap        auth.AllowLists `yaml:"bootstrap"`
}

// CurationConfig holds the curation rule store.
type CurationConfig struct {
	File         string `yaml:"file"`
	IDsPerFilter int    `yaml:"ids_per_filter"`
}

// EmbeddingConfig holds query embedding providers and the embedding cache.
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	CacheSize int                       `yaml:"cache_size"`
	CacheTTL  int                       `yaml:"cache_ttl_sec"` // shared tier only, 0 = no expiry
	TimeoutMs int                       `yaml:"timeout_ms"`
}

// ProviderConfig holds an OpenAI-compatible embedding provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// S3Config holds the object store used for s3:// materialization. Empty Endpoint disables it.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"ssl"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 64 << 20
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = string(backend.DriverEmbedded)
	}
	if c.Backend.KeyPrefix == "" {
		c.Backend.KeyPrefix = "hybridex:"
	}
	if c.Backend.ReadinessTimeout <= 0 {
		c.Backend.ReadinessTimeout = 10
	}
	if c.Backend.RequestTimeoutMs <= 0 {
		c.Backend.RequestTimeoutMs = 5000
	}
	if c.Backend.CandidateWindow <= 0 {
		c.Backend.CandidateWindow = 1000
	}
	if c.Schema.Metric == "" {
		c.Schema.Metric = string(metric.Cosine)
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 1000
	}
	if c.Search.Overfetch <= 0 {
		c.Search.Overfetch = 5
	}
	if c.Search.TimeoutMs <= 0 {
		c.Search.TimeoutMs = c.Backend.RequestTimeoutMs
	}
	if c.Search.TopTags <= 0 {
		c.Search.TopTags = 10
	}
	if c.Index.MaxBatchSize <= 0 {
		c.Index.MaxBatchSize = 500
	}
	if c.Index.Workers <= 0 {
		c.Index.Workers = 8
	}
	if c.Index.MaterializeBurst <= 0 {
		c.Index.MaterializeBurst = 1
	}
	if c.Index.MaterializeTimeoutMs <= 0 {
		c.Index.MaterializeTimeoutMs = 30000
	}
	if c.Index.MaterializeMaxBytes <= 0 {
		c.Index.MaterializeMaxBytes = 32 << 20
	}
	if c.Index.DefaultPageSize <= 0 {
		c.Index.DefaultPageSize = 20
	}
	if c.Index.MaxPageSize <= 0 {
		c.Index.MaxPageSize = 1000
	}
	if c.Auth.Provider == "" {
		c.Auth.Provider = IdentityNone
	}
	if c.Auth.AllowlistFile == "" {
		c.Auth.AllowlistFile = "data/allowlists.yaml"
	}
	if c.Curation.File == "" {
		c.Curation.File = "data/curations.yaml"
	}
	if c.Curation.IDsPerFilter <= 0 {
		c.Curation.IDsPerFilter = 10
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = 4096
	}
	if c.Embedding.TimeoutMs <= 0 {
		c.Embedding.TimeoutMs = 10000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch backend.Driver(c.Backend.Driver) {
	case backend.DriverEmbedded:
	case backend.DriverRedis, backend.DriverValkey:
		if len(c.Backend.Addrs) == 0 {
			return fmt.Errorf("backend.addrs is required for driver %q", c.Backend.Driver)
		}
	default:
		return fmt.Errorf("backend.driver must be one of embedded, redis, valkey, got %q", c.Backend.Driver)
	}

	if _, err := c.BuildSchema(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	for name, enc := range c.Schema.Encoders {
		if enc.Provider == "" {
			continue
		}
		if _, ok := c.Embedding.Providers[enc.Provider]; !ok {
			return fmt.Errorf("schema.encoders.%s.provider %q is not declared in embedding.providers", name, enc.Provider)
		}
		if enc.Model == "" {
			return fmt.Errorf("schema.encoders.%s.model is required with a provider", name)
		}
	}

	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit %d exceeds search.max_limit %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Index.MaterializeRate < 0 {
		return errors.New("index.materialize_rate must not be negative")
	}

	switch c.Auth.Provider {
	case IdentityNone:
	case IdentityJWT:
		if c.Auth.HMACSecret == "" && c.Auth.RSAPublicKeyFile == "" {
			return errors.New("auth.provider jwt requires auth.hmac_secret or auth.rsa_public_key_file")
		}
		if c.Auth.HMACSecret != "" && c.Auth.RSAPublicKeyFile != "" {
			return errors.New("auth.hmac_secret and auth.rsa_public_key_file are mutually exclusive")
		}
	case IdentityOIDC:
		if c.Auth.Issuer == "" {
			return errors.New("auth.provider oidc requires auth.issuer")
		}
	default:
		return fmt.Errorf("auth.provider must be one of none, jwt, oidc, got %q", c.Auth.Provider)
	}
	return nil
}

// BuildSchema converts the schema section into the domain schema. Encoders are taken in name order.
func (c *Config) BuildSchema() (schema.Schema, error) {
	m, err := metric.Parse(c.Schema.Metric)
	if err != nil {
		return schema.Schema{}, err
	}

	encoders := make([]schema.Encoder, 0, len(c.Schema.Encoders))
	for _, name := range c.EncoderNames() {
		ec := c.Schema.Encoders[name]
		fields := make([]schema.IndexedField, 0, len(ec.Fields))
		for _, f := range ec.Fields {
			fields = append(fields, schema.IndexedField{Name: f.Name, Modality: f.Modality})
		}
		enc, err := schema.NewEncoder(name, ec.Dimensions, fields)
		if err != nil {
			return schema.Schema{}, err
		}
		encoders = append(encoders, enc)
	}

	filters := make([]field.Field, 0, len(c.Schema.Filters))
	for _, fc := range c.Schema.Filters {
		ft := field.Type(strings.ToLower(fc.Type))
		if ft == "" {
			ft = field.Tag
		}
		f, err := field.New(fc.Name, ft)
		if err != nil {
			return schema.Schema{}, fmt.Errorf("filter %q: %w", fc.Name, err)
		}
		filters = append(filters, f)
	}

	return schema.New(m, encoders, filters)
}

// EncoderNames returns the configured encoder names sorted.
func (c *Config) EncoderNames() []string {
	names := make([]string, 0, len(c.Schema.Encoders))
	for name := range c.Schema.Encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadTimeout returns http.read_timeout_sec as a duration.
func (h HTTPConfig) ReadTimeout() time.Duration { return time.Duration(h.ReadTimeoutSec) * time.Second }

// WriteTimeout returns http.write_timeout_sec as a duration.
func (h HTTPConfig) WriteTimeout() time.Duration { return time.Duration(h.WriteTimeoutSec) * time.Second }

// ShutdownTimeout returns http.shutdown_timeout_sec as a duration.
func (h HTTPConfig) ShutdownTimeout() time.Duration { return time.Duration(h.ShutdownSec) * time.Second }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
