package bench

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/flyweight/internal/testutil"
)

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, Defaults().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"keys", func(c *Config) { c.Keys = -1 }},
		{"iterations", func(c *Config) { c.Iterations = -1 }},
		{"fail rate", func(c *Config) { c.FailRate = 1.5 }},
		{"timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWorkload_Run(t *testing.T) {
	cfg := Defaults()
	cfg.Workers = 6
	cfg.Keys = 8
	cfg.Iterations = 300
	cfg.FailRate = 0.2

	reg := testutil.NewRegistry(t)

	w := NewWorkload(cfg, reg, testutil.DiscardLogger())
	report, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(cfg.Workers*cfg.Iterations), report.Calls)
	assert.Greater(t, report.Failures, int64(0))
	assert.Equal(t, 0, report.Pending)
	assert.Equal(t, report.Distinct, report.Live)
	testutil.AssertSettled(t, reg)
}

func TestWorkload_Cancelled(t *testing.T) {
	cfg := Defaults()
	reg := testutil.NewRegistry(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWorkload(cfg, reg, slog.Default()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun(t *testing.T) {
	cfg := Defaults()
	cfg.Workers = 4
	cfg.Keys = 4
	cfg.Iterations = 100

	var out, diag bytes.Buffer
	err := Run(context.Background(), cfg, Output{Out: &out, Err: &diag})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "calls")
	assert.Contains(t, out.String(), "400")
	assert.Contains(t, out.String(), `flyweight_registry_acquisitions_total{registry="bench",role="Claimant"}`)
	assert.Contains(t, out.String(), `flyweight_registry_claims_in_progress{registry="bench"} 0`)
}

func TestRun_Tracing(t *testing.T) {
	cfg := Defaults()
	cfg.Workers = 2
	cfg.Keys = 2
	cfg.Iterations = 10
	cfg.Metrics = false
	cfg.Trace = true

	var out, diag bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, Output{Out: &out, Err: &diag}))

	assert.NotContains(t, out.String(), "flyweight_registry")
	assert.Contains(t, diag.String(), "flyweight.Close")
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Workers = 0
	err := Run(context.Background(), cfg, Output{Out: io.Discard, Err: io.Discard})
	assert.Error(t, err)
}
