package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fzft/go-coro-httpd/fdio"
	"github.com/fzft/go-coro-httpd/httpd"
	"github.com/fzft/go-coro-httpd/node"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, node.DefaultConfig(), *cfg)
}

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{
		"-addr", "127.0.0.1:9000",
		"-mode", "threaded",
		"-poller", "select",
		"-http-version", "HTTP/1.0",
		"-poll-timeout", "250ms",
		"-close-on-response",
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, node.ModeThreaded, cfg.Mode)
	assert.Equal(t, fdio.KindSelect, cfg.Poller)
	assert.Equal(t, httpd.HTTP10, cfg.ServerVersion)
	assert.Equal(t, 250*time.Millisecond, cfg.PollTimeout)
	assert.True(t, cfg.CloseOnResponse)
}

func TestParseFlagsRejects(t *testing.T) {
	for _, args := range [][]string{
		{"-mode", "forking"},
		{"-poller", "kqueue"},
		{"-http-version", "HTTP/2.0"},
		{"-http-version", "1.1"},
		{"-read-size", "0"},
	} {
		_, err := parseFlags(args)
		assert.Error(t, err, args)
	}
}

func TestParseFlagsVersion(t *testing.T) {
	cfg, err := parseFlags([]string{"-version"})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "go-coro-httpd sha=unknown dirty=unknown build=unknown date=unknown", versionString())
}
