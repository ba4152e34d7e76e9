package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/bpsr-logs/livemeter/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.Equal(t, noop.Meter{}, p.Meter("x"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSinks(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "livemeter", BatchTimeout: time.Second})
	assert.ErrorIs(t, err, ErrNoSinks)
}

func TestNew_EnabledWithWriter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "livemeter",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
	})
	require.NoError(t, err)

	assert.True(t, p.Enabled())
	require.NotNil(t, p.LoggerProvider())
	assert.NotNil(t, p.Meter("livemeter"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewResource(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want map[attribute.Key]string
		skip []attribute.Key
	}{
		{
			name: "name only",
			cfg:  Config{ServiceName: "livemeter"},
			want: map[attribute.Key]string{"service.name": "livemeter"},
			skip: []attribute.Key{"service.version", ScopeKey},
		},
		{
			name: "version and scope",
			cfg:  Config{ServiceName: "livemeter", ServiceVersion: "1.2.3", Scope: "eu-1"},
			want: map[attribute.Key]string{"service.name": "livemeter", "service.version": "1.2.3", ScopeKey: "eu-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newResource(context.Background(), tt.cfg)
			require.NoError(t, err)
			set := res.Set()
			for k, v := range tt.want {
				got, ok := set.Value(k)
				require.True(t, ok, k)
				assert.Equal(t, v, got.AsString())
			}
			for _, k := range tt.skip {
				_, ok := set.Value(k)
				assert.False(t, ok, k)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := FromConfig(config.OTelConfig{
		Enabled:      true,
		ServiceName:  "svc",
		BatchTimeout: 2 * time.Second,
		Endpoint:     "collector:4318",
		Insecure:     true,
	}, &buf)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "svc", cfg.ServiceName)
	assert.Equal(t, 2*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Same(t, &buf, cfg.LogWriter)
}
