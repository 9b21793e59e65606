package observability

import (
	"testing"

	"github.com/smallbiznis/settlement/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigSamplesEverythingOutsideProduction(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "development",
		Telemetry:   config.TelemetryConfig{SamplingRatio: 0.1, OTLPProtocol: "grpc"},
	})
	assert.Equal(t, "settlement", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigProduction(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:      "settlement-admin",
		Environment:  "production",
		OTLPEndpoint: " collector:4318 ",
		Telemetry: config.TelemetryConfig{
			LogLevel:       "info",
			TracingEnabled: true,
			OTLPProtocol:   "http/protobuf",
			SamplingRatio:  0.25,
		},
	})
	assert.Equal(t, "settlement-admin", cfg.ServiceName)
	assert.Equal(t, "collector:4318", cfg.OtelExporterEndpoint)
	assert.Equal(t, "http/protobuf", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.25, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigFallsBackToGRPC(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "production", Telemetry: config.TelemetryConfig{OTLPProtocol: "udp", SamplingRatio: 3}})
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
}
