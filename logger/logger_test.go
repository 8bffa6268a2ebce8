package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "JSON output mode", opts: Options{JSON: true, Level: "warn"}},
		{name: "Console output mode", opts: Options{JSON: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := Logger
			t.Cleanup(func() { Logger = prev; JSONOutput = false })

			require.NoError(t, Initialize(tt.opts))
			assert.NotNil(t, Logger)
			assert.Equal(t, tt.opts.JSON, JSONOutput)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zap.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zap.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zap.InfoLevel, ParseLevel(""))
	assert.Equal(t, zap.InfoLevel, ParseLevel("loud"))
}

func TestOrDefault(t *testing.T) {
	assert.Same(t, Logger, OrDefault(nil))

	custom := zap.NewNop().Sugar()
	assert.Same(t, custom, OrDefault(custom))
}

func TestChildLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	parent := zap.New(core).Sugar()

	ChildLogger(parent, FieldJobID, "job-1").Infow("started", FieldTenantID, "acme")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "job-1", fields[FieldJobID])
	assert.Equal(t, "acme", fields[FieldTenantID])
}
