package hybridex

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // "embedded", "redis" or "valkey"
	path      string
	addrs     []string
	password  string
	keyPrefix string

	schema    Schema
	embedders map[string]Embedder

	candidateWindow int
	maxBatchSize    int
	workers         int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithEmbedded keeps documents in process. A non-empty path persists them on disk.
func WithEmbedded(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "embedded"
		c.path = path
	})
}

// WithValkey stores documents in a Valkey instance with valkey-search. Lexical search is unavailable.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores documents in a Redis instance with the search module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix namespaces Redis/Valkey keys. Default: "hybridex:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithSchema declares encoders, the metric and filterable tags. Required.
func WithSchema(s Schema) Option {
	return optionFunc(func(c *clientConfig) {
		c.schema = s
	})
}

// WithEmbedder encodes query text for encoder when a query field carries no vector.
func WithEmbedder(encoder string, e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		if c.embedders == nil {
			c.embedders = make(map[string]Embedder)
		}
		c.embedders[encoder] = e
	})
}

// WithCandidateWindow bounds how many candidates Redis/Valkey return per retrieval clause.
func WithCandidateWindow(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.candidateWindow = n
	})
}

// WithMaxBatchSize sets the maximum number of documents per Index call.
// Default: 500.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithWorkers sizes the pool that materializes document URIs.
// Default: 8.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
