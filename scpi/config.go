package scpi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/arloliu/go-scpi/framer"
	"github.com/arloliu/go-scpi/logger"
	"github.com/arloliu/go-scpi/transport"
)

// Default session settings.
const (
	DefaultPort             = transport.DefaultPort
	DefaultConnectTimeout   = 5 * time.Second
	DefaultReadTimeout      = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultMaxFrameSize     = framer.DefaultMaxSize
	DefaultChunkSize        = transport.DefaultChunkSize
	DefaultStaleDrainWindow = 20 * time.Millisecond
	DefaultErrorQuery       = "SYST:ERR?"
	DefaultMaxErrorEntries  = 32
)

// Setting range limits.
const (
	MinConnectTimeout = 10 * time.Millisecond
	MaxConnectTimeout = 2 * time.Minute

	MinReadTimeout = time.Millisecond
	MaxReadTimeout = time.Hour

	MinWriteTimeout = time.Millisecond
	MaxWriteTimeout = 2 * time.Minute

	MaxStaleDrainWindow = time.Second

	MaxErrorEntries = 1024
)

// SessionConfig holds all configuration for a Session.
type SessionConfig struct {
	host string
	port int

	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration

	terminator   []byte
	maxFrameSize int
	chunkSize    int
	blockTrailer bool

	// staleDrainWindow is how long the engine listens for late replies before the
	// first transaction after a timeout.
	staleDrainWindow time.Duration

	strictMode      bool
	errorQuery      string
	maxErrorEntries int

	logger logger.Logger
}

// NewSessionConfig creates a session configuration for the instrument at host:port.
//
// host must be non-empty; it is resolved when the session opens, so resolution
// failures surface as ErrConnect. port must be in [1, 65535].
func NewSessionConfig(host string, port int, opts ...SessionOption) (*SessionConfig, error) {
	cfg := &SessionConfig{
		connectTimeout:   DefaultConnectTimeout,
		readTimeout:      DefaultReadTimeout,
		writeTimeout:     DefaultWriteTimeout,
		terminator:       bytes.Clone(framer.DefaultTerminator),
		maxFrameSize:     DefaultMaxFrameSize,
		chunkSize:        DefaultChunkSize,
		blockTrailer:     true,
		staleDrainWindow: DefaultStaleDrainWindow,
		errorQuery:       DefaultErrorQuery,
		maxErrorEntries:  DefaultMaxErrorEntries,
		logger:           logger.GetLogger(),
	}

	if host == "" {
		return nil, fmt.Errorf("%w: host must not be empty", ErrInvalidConfig)
	}
	cfg.host = host

	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range [1, 65535]", ErrInvalidConfig, port)
	}
	cfg.port = port

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// Host returns the configured host.
func (cfg *SessionConfig) Host() string { return cfg.host }

// Port returns the configured TCP port.
func (cfg *SessionConfig) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *SessionConfig) Addr() string { return cfg.Endpoint().Addr() }

// Endpoint returns the transport endpoint described by the configuration.
func (cfg *SessionConfig) Endpoint() transport.Endpoint {
	return transport.Endpoint{
		Host:           cfg.host,
		Port:           cfg.port,
		ConnectTimeout: cfg.connectTimeout,
		WriteTimeout:   cfg.writeTimeout,
	}
}

// ConnectTimeout returns the dial timeout.
func (cfg *SessionConfig) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// ReadTimeout returns the initial query timeout.
func (cfg *SessionConfig) ReadTimeout() time.Duration { return cfg.readTimeout }

// WriteTimeout returns the write timeout.
func (cfg *SessionConfig) WriteTimeout() time.Duration { return cfg.writeTimeout }

// Terminator returns a copy of the message terminator.
func (cfg *SessionConfig) Terminator() []byte { return bytes.Clone(cfg.terminator) }

// MaxFrameSize returns the bound of the framer residual buffer.
func (cfg *SessionConfig) MaxFrameSize() int { return cfg.maxFrameSize }

// ChunkSize returns the transport receive buffer size.
func (cfg *SessionConfig) ChunkSize() int { return cfg.chunkSize }

// BlockTrailer returns whether the terminator following a binary block is consumed.
func (cfg *SessionConfig) BlockTrailer() bool { return cfg.blockTrailer }

// StaleDrainWindow returns how long late replies are drained after a timeout.
func (cfg *SessionConfig) StaleDrainWindow() time.Duration { return cfg.staleDrainWindow }

// StrictMode returns whether the error queue is drained after every transaction.
func (cfg *SessionConfig) StrictMode() bool { return cfg.strictMode }

// ErrorQuery returns the query used to pop the instrument error queue.
func (cfg *SessionConfig) ErrorQuery() string { return cfg.errorQuery }

// MaxErrorEntries returns the maximum number of entries read per drain.
func (cfg *SessionConfig) MaxErrorEntries() int { return cfg.maxErrorEntries }

// GetLogger returns the configured logger.
func (cfg *SessionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- SessionOption ---

// SessionOption is a functional option for configuring a SessionConfig.
type SessionOption interface {
	apply(*SessionConfig) error
}

type sessionOptFunc func(*SessionConfig) error

func (f sessionOptFunc) apply(cfg *SessionConfig) error { return f(cfg) }

// WithConnectTimeout sets the dial timeout.
// The value should be in the range [10ms, 2m].
func WithConnectTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinConnectTimeout || d > MaxConnectTimeout {
			return fmt.Errorf("%w: connect timeout %v out of range [%v, %v]", ErrInvalidConfig, d, MinConnectTimeout, MaxConnectTimeout)
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithReadTimeout sets the default query timeout. It can be changed on an open session
// with Session.SetTimeout.
// The value should be in the range [1ms, 1h].
func WithReadTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if err := validateReadTimeout(d); err != nil {
			return err
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the write timeout.
// The value should be in the range [1ms, 2m].
func WithWriteTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinWriteTimeout || d > MaxWriteTimeout {
			return fmt.Errorf("%w: write timeout %v out of range [%v, %v]", ErrInvalidConfig, d, MinWriteTimeout, MaxWriteTimeout)
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithTerminator sets the message terminator. The default is "\n".
func WithTerminator(term string) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if term == "" {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, framer.ErrEmptyTerminator)
		}
		cfg.terminator = []byte(term)

		return nil
	})
}

// WithMaxFrameSize sets the bound of buffered reply data, in bytes.
// The value should be in the range [framer.MinMaxSize, framer.MaxMaxSize].
func WithMaxFrameSize(size int) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if size < framer.MinMaxSize || size > framer.MaxMaxSize {
			return fmt.Errorf("%w: %w: %d", ErrInvalidConfig, framer.ErrInvalidMaxSize, size)
		}
		cfg.maxFrameSize = size

		return nil
	})
}

// WithChunkSize sets the transport receive buffer size.
// The value should be in the range [transport.MinChunkSize, transport.MaxChunkSize].
func WithChunkSize(size int) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if size < transport.MinChunkSize || size > transport.MaxChunkSize {
			return fmt.Errorf("%w: chunk size %d out of range [%d, %d]", ErrInvalidConfig, size, transport.MinChunkSize, transport.MaxChunkSize)
		}
		cfg.chunkSize = size

		return nil
	})
}

// WithBlockTrailer controls whether the terminator that follows a definite-length block
// is consumed, including one arriving after QueryBinary returned. QueryBinary returns as
// soon as the declared data is received either way. Enabled by default.
func WithBlockTrailer(enabled bool) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		cfg.blockTrailer = enabled
		return nil
	})
}

// WithStaleDrainWindow sets how long late replies are drained before the first
// transaction after a timeout. Zero disables draining.
// The value should be in the range [0, 1s].
func WithStaleDrainWindow(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < 0 || d > MaxStaleDrainWindow {
			return fmt.Errorf("%w: stale drain window %v out of range [0, %v]", ErrInvalidConfig, d, MaxStaleDrainWindow)
		}
		cfg.staleDrainWindow = d

		return nil
	})
}

// WithStrictMode enables draining the instrument error queue after every command and
// query. Disabled by default.
func WithStrictMode(enabled bool) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		cfg.strictMode = enabled
		return nil
	})
}

// WithErrorQuery sets the query that pops one entry of the error queue.
// The default is "SYST:ERR?".
func WithErrorQuery(query string) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if !IsQuery(query) {
			return fmt.Errorf("%w: error query %q is not a query", ErrInvalidConfig, query)
		}
		cfg.errorQuery = query

		return nil
	})
}

// WithMaxErrorEntries sets the maximum number of entries read per drain.
// The value should be in the range [1, 1024].
func WithMaxErrorEntries(n int) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if n < 1 || n > MaxErrorEntries {
			return fmt.Errorf("%w: max error entries %d out of range [1, %d]", ErrInvalidConfig, n, MaxErrorEntries)
		}
		cfg.maxErrorEntries = n

		return nil
	})
}

// WithLogger sets the logger for the session.
func WithLogger(l logger.Logger) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if l == nil {
			return fmt.Errorf("%w: logger must not be nil", ErrInvalidConfig)
		}
		cfg.logger = l

		return nil
	})
}

func validateReadTimeout(d time.Duration) error {
	if d < MinReadTimeout || d > MaxReadTimeout {
		return fmt.Errorf("%w: read timeout %v out of range [%v, %v]", ErrInvalidConfig, d, MinReadTimeout, MaxReadTimeout)
	}

	return nil
}
