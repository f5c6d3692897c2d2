package telemetry

// Config holds OpenTelemetry configuration, bound from pkg/config's
// TelemetryConfig.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Insecure       bool
	SampleRate     float64
}

// DefaultConfig returns telemetry disabled, matching the rest of the
// gateway's conservative ambient-stack defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "uploadgateway",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
