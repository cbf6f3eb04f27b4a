package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingConfig(t *testing.T) {
	var c TracingConfig
	c.ApplyDefaults("formproc")
	assert.Equal(t, "formproc", c.ServiceName)
	assert.Equal(t, 1.0, c.SampleRatio)
	assert.Equal(t, "127.0.0.1:4318", c.OTLPEndpoint)
	require.NoError(t, c.Validate())

	c.SampleRatio = 1.5
	assert.Error(t, c.Validate())

	c = TracingConfig{Enabled: true, SampleRatio: 0.5}
	assert.Error(t, c.Validate())
}

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), DefaultConfig("formproc"), nil)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, ShutdownTracing(shutdown, nil))
	assert.NoError(t, ShutdownTracing(nil, nil))
}
