package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(t *testing.T) {
	t.Helper()
	old := flag.CommandLine
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	t.Cleanup(func() { flag.CommandLine = old })
}

func TestParseDefaults(t *testing.T) {
	resetFlags(t)
	cfg := NewConfig()
	os.Args = []string{"pipelinectl"}

	require.NoError(t, cfg.Parse())
	assert.Equal(t, defaultAddress, cfg.Address)
	assert.Equal(t, defaultBodyChannelCapacity, cfg.BodyChannelCapacity)
	assert.Equal(t, defaultIdleInterval, cfg.IdleInterval)
	assert.Equal(t, time.Duration(0), cfg.AdmissionTimeout)
	assert.Equal(t, defaultBreakerTimeout, cfg.BreakerTimeout)
}

func TestParseRejectsPositionalArgs(t *testing.T) {
	resetFlags(t)
	cfg := NewConfig()
	os.Args = []string{"pipelinectl", "unexpected"}

	err := cfg.Parse()
	assert.Error(t, err)
}

func TestParseInvalidLogLevel(t *testing.T) {
	resetFlags(t)
	cfg := NewConfig()
	os.Args = []string{"pipelinectl", "-application-log-level=not-a-level"}

	err := cfg.Parse()
	assert.Error(t, err)
}
