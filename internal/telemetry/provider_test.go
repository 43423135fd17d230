package telemetry

import (
	"context"
	"testing"

	"github.com/JonMunkholm/inventory/internal/config"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TelemetryConfig
	}{
		{"disabled", config.TelemetryConfig{Enabled: false, Endpoint: "localhost:4318"}},
		{"enabled without endpoint", config.TelemetryConfig{Enabled: true}},
		// Non-routable address so nothing is exported.
		{"host and port", config.TelemetryConfig{Enabled: true, Endpoint: "192.0.2.1:4318", Insecure: true}},
		{"full URL", config.TelemetryConfig{Enabled: true, Endpoint: "http://192.0.2.1:4318", ServiceName: "inventory-test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("Setup: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown: %v", err)
			}
		})
	}
}

func TestExporterOptions(t *testing.T) {
	tests := []struct {
		cfg  config.TelemetryConfig
		want int
	}{
		{config.TelemetryConfig{Endpoint: "collector:4318", Insecure: true}, 2},
		{config.TelemetryConfig{Endpoint: "collector:4318"}, 1},
		{config.TelemetryConfig{Endpoint: "https://collector:4318", Insecure: true}, 1},
	}
	for _, tt := range tests {
		if got := len(exporterOptions(tt.cfg)); got != tt.want {
			t.Errorf("exporterOptions(%+v) returned %d options, want %d", tt.cfg, got, tt.want)
		}
	}
}
