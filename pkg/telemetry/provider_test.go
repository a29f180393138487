// SPDX-License-Identifier: BSD-3-Clause

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
)

func TestSetupInstallsGlobalProviders(t *testing.T) {
	p, err := Setup("test-service", "v0.0.0-test")
	require.NoError(t, err)
	require.NotNil(t, p)
	defer p.Shutdown(context.Background())

	assert.NotNil(t, otel.GetTracerProvider())
	assert.NotNil(t, p.Meter("test"))
}

func TestShutdownSucceeds(t *testing.T) {
	p, err := Setup("test-service", "v0.0.0-test")
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}
