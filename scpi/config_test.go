package scpi

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-scpi/framer"
	"github.com/arloliu/go-scpi/logger"
)

func TestNewSessionConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewSessionConfig("instrument.local", DefaultPort)
	require.NoError(err)

	require.Equal("instrument.local", cfg.Host())
	require.Equal(5025, cfg.Port())
	require.Equal("instrument.local:5025", cfg.Addr())
	require.Equal(DefaultConnectTimeout, cfg.ConnectTimeout())
	require.Equal(DefaultReadTimeout, cfg.ReadTimeout())
	require.Equal(DefaultWriteTimeout, cfg.WriteTimeout())
	require.Equal([]byte("\n"), cfg.Terminator())
	require.Equal(DefaultMaxFrameSize, cfg.MaxFrameSize())
	require.Equal(DefaultChunkSize, cfg.ChunkSize())
	require.True(cfg.BlockTrailer())
	require.Equal(DefaultStaleDrainWindow, cfg.StaleDrainWindow())
	require.False(cfg.StrictMode())
	require.Equal("SYST:ERR?", cfg.ErrorQuery())
	require.Equal(DefaultMaxErrorEntries, cfg.MaxErrorEntries())
	require.NotNil(cfg.GetLogger())

	ep := cfg.Endpoint()
	require.Equal(DefaultConnectTimeout, ep.ConnectTimeout)
	require.Equal(DefaultWriteTimeout, ep.WriteTimeout)
}

func TestNewSessionConfig_Options(t *testing.T) {
	require := require.New(t)

	l := logger.NewMockLogger()
	cfg, err := NewSessionConfig("10.0.0.2", 5025,
		WithConnectTimeout(time.Second),
		WithReadTimeout(30*time.Second),
		WithWriteTimeout(2*time.Second),
		WithTerminator("\r\n"),
		WithMaxFrameSize(1<<20),
		WithChunkSize(4096),
		WithBlockTrailer(false),
		WithStaleDrainWindow(0),
		WithStrictMode(true),
		WithErrorQuery(":SYST:ERR:NEXT?"),
		WithMaxErrorEntries(8),
		WithLogger(l),
	)
	require.NoError(err)

	require.Equal(time.Second, cfg.ConnectTimeout())
	require.Equal(30*time.Second, cfg.ReadTimeout())
	require.Equal(2*time.Second, cfg.WriteTimeout())
	require.Equal([]byte("\r\n"), cfg.Terminator())
	require.Equal(1<<20, cfg.MaxFrameSize())
	require.Equal(4096, cfg.ChunkSize())
	require.False(cfg.BlockTrailer())
	require.Zero(cfg.StaleDrainWindow())
	require.True(cfg.StrictMode())
	require.Equal(":SYST:ERR:NEXT?", cfg.ErrorQuery())
	require.Equal(8, cfg.MaxErrorEntries())
	require.Same(l, cfg.GetLogger())
}

func TestNewSessionConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		opts []SessionOption
	}{
		{"empty host", "", 5025, nil},
		{"port zero", "h", 0, nil},
		{"port too large", "h", 70000, nil},
		{"connect timeout", "h", 5025, []SessionOption{WithConnectTimeout(time.Millisecond)}},
		{"read timeout", "h", 5025, []SessionOption{WithReadTimeout(0)}},
		{"write timeout", "h", 5025, []SessionOption{WithWriteTimeout(time.Hour)}},
		{"terminator", "h", 5025, []SessionOption{WithTerminator("")}},
		{"max frame size", "h", 5025, []SessionOption{WithMaxFrameSize(1)}},
		{"chunk size", "h", 5025, []SessionOption{WithChunkSize(1)}},
		{"stale drain window", "h", 5025, []SessionOption{WithStaleDrainWindow(-time.Second)}},
		{"error query", "h", 5025, []SessionOption{WithErrorQuery("SYST:ERR")}},
		{"max error entries", "h", 5025, []SessionOption{WithMaxErrorEntries(0)}},
		{"nil logger", "h", 5025, []SessionOption{WithLogger(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSessionConfig(tt.host, tt.port, tt.opts...)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := NewSessionConfig("h", 5025, WithTerminator(""))
	require.ErrorIs(t, err, framer.ErrEmptyTerminator)
	_, err = NewSessionConfig("h", 5025, WithMaxFrameSize(1))
	require.ErrorIs(t, err, framer.ErrInvalidMaxSize)
}

func TestParseConfig(t *testing.T) {
	require := require.New(t)

	doc := `
host = "192.168.1.10"
read_timeout = "2s"
connect_timeout = "500ms"
terminator = "\r\n"
strict_mode = true
block_trailer = false
max_error_entries = 5
`
	fc, err := ParseConfig([]byte(doc))
	require.NoError(err)
	require.Equal("192.168.1.10", fc.Host)

	cfg, err := fc.SessionConfig(WithReadTimeout(3 * time.Second))
	require.NoError(err)
	require.Equal(DefaultPort, cfg.Port())
	require.Equal(3*time.Second, cfg.ReadTimeout())
	require.Equal(500*time.Millisecond, cfg.ConnectTimeout())
	require.Equal([]byte("\r\n"), cfg.Terminator())
	require.True(cfg.StrictMode())
	require.False(cfg.BlockTrailer())
	require.Equal(5, cfg.MaxErrorEntries())
	require.Equal(DefaultWriteTimeout, cfg.WriteTimeout())
}

func TestParseConfig_Errors(t *testing.T) {
	require := require.New(t)

	_, err := ParseConfig([]byte("host = "))
	require.Error(err)

	fc, err := ParseConfig([]byte(`host = "h"` + "\n" + `read_timeout = "soon"`))
	require.NoError(err)
	_, err = fc.SessionConfig()
	require.ErrorIs(err, ErrInvalidConfig)
	require.ErrorContains(err, "read_timeout")

	fc, err = ParseConfig([]byte(`port = 5025`))
	require.NoError(err)
	_, err = fc.SessionConfig()
	require.ErrorIs(err, ErrInvalidConfig)
}

func TestLoadConfigFile(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "znb.toml")
	require.NoError(os.WriteFile(path, []byte("host = \"znb\"\nport = 5026\n"), 0o600))

	fc, err := LoadConfigFile(path)
	require.NoError(err)

	cfg, err := fc.SessionConfig()
	require.NoError(err)
	require.Equal("znb:5026", cfg.Addr())

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(err, os.ErrNotExist)
}
