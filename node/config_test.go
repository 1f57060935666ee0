package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fzft/go-coro-httpd/fdio"
	"github.com/fzft/go-coro-httpd/httpd"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeReactor, cfg.Mode)
	assert.Equal(t, fdio.KindAuto, cfg.Poller)
	assert.Equal(t, httpd.HTTP11, cfg.ServerVersion)
	assert.Equal(t, fdio.Forever, cfg.PollTimeout)
	assert.False(t, cfg.CloseOnResponse)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"mode", func(c *Config) { c.Mode = "forking" }},
		{"poller", func(c *Config) { c.Poller = "kqueue" }},
		{"addr", func(c *Config) { c.Addr = "" }},
		{"read size", func(c *Config) { c.ReadSize = 0 }},
		{"write size", func(c *Config) { c.WriteSize = -1 }},
		{"http2", func(c *Config) { c.ServerVersion = httpd.HTTP20 }},
		{"http09", func(c *Config) { c.ServerVersion = httpd.HTTP09 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEngineFactoryDefaultsToEcho(t *testing.T) {
	f, err := newEngineFactory(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, EchoHandler{}, f.handler)
	assert.Equal(t, "1.2.3.4:5", f.newEngine("1.2.3.4:5").ClientAddr())
}
