package casetable

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	bridgeURL        string
	token            string
	requestTimeout   time.Duration
	reloadTimeout    time.Duration
	fetchConcurrency int

	driver    string // "", "valkey" or "redis"; empty keeps preferences in memory
	addrs     []string
	password  string
	keyPrefix string

	defaultLayout Layout

	logger     *slog.Logger
	zapLogger  *zap.Logger
	metricsReg prometheus.Registerer
}

// WithBridge sets the host bridge endpoint. Required.
func WithBridge(url, token string) Option {
	return optionFunc(func(c *clientConfig) {
		c.bridgeURL = url
		c.token = token
	})
}

// WithRequestTimeout bounds every host request. Default: 10s.
func WithRequestTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.requestTimeout = d
	})
}

// WithReloadTimeout bounds a reload triggered by a structural notification. Default: 30s.
func WithReloadTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.reloadTimeout = d
	})
}

// WithFetchConcurrency caps concurrent case fetches per level. Default: 8.
func WithFetchConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.fetchConcurrency = n
	})
}

// WithValkey stores layout preferences in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores layout preferences in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix sets the key prefix of stored preferences. Default: "casetable:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithDefaultLayout sets the layout of datasets without a stored choice.
func WithDefaultLayout(l Layout) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultLayout = l
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithZapLogger sets the logger of the embedded components (model, synchronizer, bridge).
func WithZapLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.zapLogger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
