package scpi

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig is the TOML form of a SessionConfig. Durations are strings accepted by
// time.ParseDuration; zero values keep the defaults.
//
//	host = "192.168.1.10"
//	port = 5025
//	read_timeout = "2s"
//	strict_mode = true
type FileConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	ConnectTimeout   string `toml:"connect_timeout"`
	ReadTimeout      string `toml:"read_timeout"`
	WriteTimeout     string `toml:"write_timeout"`
	Terminator       string `toml:"terminator"`
	MaxFrameSize     int    `toml:"max_frame_size"`
	ChunkSize        int    `toml:"chunk_size"`
	StaleDrainWindow string `toml:"stale_drain_window"`
	BlockTrailer     *bool  `toml:"block_trailer"`
	StrictMode       *bool  `toml:"strict_mode"`
	ErrorQuery       string `toml:"error_query"`
	MaxErrorEntries  int    `toml:"max_error_entries"`
}

// LoadConfigFile reads and parses a TOML session config file.
func LoadConfigFile(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scpi: read config: %w", err)
	}

	return ParseConfig(b)
}

// ParseConfig parses a TOML session config document.
func ParseConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("scpi: parse config: %w", err)
	}

	return &fc, nil
}

// Options converts the non-zero fields into session options.
func (fc *FileConfig) Options() ([]SessionOption, error) {
	var opts []SessionOption

	durations := []struct {
		key   string
		value string
		opt   func(time.Duration) SessionOption
	}{
		{"connect_timeout", fc.ConnectTimeout, WithConnectTimeout},
		{"read_timeout", fc.ReadTimeout, WithReadTimeout},
		{"write_timeout", fc.WriteTimeout, WithWriteTimeout},
		{"stale_drain_window", fc.StaleDrainWindow, WithStaleDrainWindow},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, d.key, err)
		}
		opts = append(opts, d.opt(v))
	}

	if fc.Terminator != "" {
		opts = append(opts, WithTerminator(fc.Terminator))
	}
	if fc.MaxFrameSize != 0 {
		opts = append(opts, WithMaxFrameSize(fc.MaxFrameSize))
	}
	if fc.ChunkSize != 0 {
		opts = append(opts, WithChunkSize(fc.ChunkSize))
	}
	if fc.BlockTrailer != nil {
		opts = append(opts, WithBlockTrailer(*fc.BlockTrailer))
	}
	if fc.StrictMode != nil {
		opts = append(opts, WithStrictMode(*fc.StrictMode))
	}
	if fc.ErrorQuery != "" {
		opts = append(opts, WithErrorQuery(fc.ErrorQuery))
	}
	if fc.MaxErrorEntries != 0 {
		opts = append(opts, WithMaxErrorEntries(fc.MaxErrorEntries))
	}

	return opts, nil
}

// SessionConfig builds a validated SessionConfig. extra options are applied after the
// file options, so callers can override file values (for example with command line flags).
// A zero port selects DefaultPort.
func (fc *FileConfig) SessionConfig(extra ...SessionOption) (*SessionConfig, error) {
	if fc.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}

	port := fc.Port
	if port == 0 {
		port = DefaultPort
	}

	opts, err := fc.Options()
	if err != nil {
		return nil, err
	}

	return NewSessionConfig(fc.Host, port, append(opts, extra...)...)
}
