package bosh

import (
	"time"

	"github.com/pion/logging"
)

// Default tunables named in spec.md §6 and §9. Both are honored but
// optional; ClientConfigBuilder.Build substitutes these for zero values.
const (
	DefaultEmptyRequestDelay = 100 * time.Millisecond
	DefaultPauseMargin       = 500 * time.Millisecond
)

// ClientConfig configures a Client. It is built once via ClientConfigBuilder
// and never mutated afterward; the scheduler reads it without locking.
type ClientConfig struct {
	// URI is the connection manager's HTTP endpoint.
	URI string

	To    string
	Lang  string
	Route string
	From  string

	// RequestAck enables client-side request acking: the session-creation
	// request carries ack="1" and the client tracks pendingRequestAcks.
	RequestAck bool

	// Compression enables Accept-Encoding negotiation on the default sender.
	Compression bool

	// LoggerFactory is optional. When nil, every component's logger field
	// stays nil and logging calls are skipped.
	LoggerFactory logging.LoggerFactory

	// EmptyRequestDelay and PauseMargin override the defaults from spec.md
	// §4.4 and §9. Build replaces a zero value with the default.
	EmptyRequestDelay time.Duration
	PauseMargin       time.Duration
}

// ClientConfigBuilder builds a ClientConfig field by field, mirroring the
// Body/Builder construction pattern used throughout this package.
type ClientConfigBuilder struct {
	cfg ClientConfig
}

// NewClientConfig starts a builder for a session against uri.
func NewClientConfig(uri string) *ClientConfigBuilder {
	return &ClientConfigBuilder{cfg: ClientConfig{URI: uri, Lang: "en"}}
}

func (b *ClientConfigBuilder) To(to string) *ClientConfigBuilder {
	b.cfg.To = to
	return b
}

func (b *ClientConfigBuilder) Lang(lang string) *ClientConfigBuilder {
	b.cfg.Lang = lang
	return b
}

func (b *ClientConfigBuilder) Route(route string) *ClientConfigBuilder {
	b.cfg.Route = route
	return b
}

func (b *ClientConfigBuilder) From(from string) *ClientConfigBuilder {
	b.cfg.From = from
	return b
}

func (b *ClientConfigBuilder) WithRequestAck() *ClientConfigBuilder {
	b.cfg.RequestAck = true
	return b
}

func (b *ClientConfigBuilder) WithCompression() *ClientConfigBuilder {
	b.cfg.Compression = true
	return b
}

func (b *ClientConfigBuilder) WithLoggerFactory(f logging.LoggerFactory) *ClientConfigBuilder {
	b.cfg.LoggerFactory = f
	return b
}

func (b *ClientConfigBuilder) WithEmptyRequestDelay(d time.Duration) *ClientConfigBuilder {
	b.cfg.EmptyRequestDelay = d
	return b
}

func (b *ClientConfigBuilder) WithPauseMargin(d time.Duration) *ClientConfigBuilder {
	b.cfg.PauseMargin = d
	return b
}

func (b *ClientConfigBuilder) Build() *ClientConfig {
	cfg := b.cfg
	if cfg.EmptyRequestDelay == 0 {
		cfg.EmptyRequestDelay = DefaultEmptyRequestDelay
	}
	if cfg.PauseMargin == 0 {
		cfg.PauseMargin = DefaultPauseMargin
	}
	return &cfg
}
