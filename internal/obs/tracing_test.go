package obs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loyalty-shop/internal/obs"
)

func TestInitTracerNoneIsNoop(t *testing.T) {
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		ServiceName: "loyalty-shop",
		Exporter:    "none",
		BackendURL:  "http://localhost:5000",
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracerRejectsUnknownExporter(t *testing.T) {
	_, err := obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "zipkin"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "zipkin")
}
