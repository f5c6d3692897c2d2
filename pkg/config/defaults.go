package config

// GetDefaultConfig returns a Config populated with sane local-development
// defaults, the same values Load falls back to when no config file exists.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills any zero-valued field of cfg with its default. Load
// calls this after unmarshalling a partial config file so that an operator
// only needs to override what differs from the defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == "" {
		cfg.Server.ShutdownTimeout = "15s"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "upload-gateway"
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1.0
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}

	if cfg.Zone.CoreZoneLabel == "" {
		cfg.Zone.CoreZoneLabel = "core"
	}
	if cfg.Zone.GreenZoneLabel == "" {
		cfg.Zone.GreenZoneLabel = "greenroom"
	}
	if cfg.Zone.Namespace == "" {
		cfg.Zone.Namespace = "greenroom"
	}

	if cfg.Services.MetadataServiceURL == "" {
		cfg.Services.MetadataServiceURL = "http://metadata-service"
	}
	if cfg.Services.DataOpsServiceURL == "" {
		cfg.Services.DataOpsServiceURL = "http://dataops-service"
	}
	if cfg.Services.ProjectServiceURL == "" {
		cfg.Services.ProjectServiceURL = "http://project-service"
	}
	if cfg.Services.LockServiceURL == "" {
		cfg.Services.LockServiceURL = "http://lock-service"
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "metadata.items.activity"
	}
	if cfg.Kafka.SchemaPath == "" {
		cfg.Kafka.SchemaPath = "schemas/activity.avsc"
	}

	if cfg.Object.Endpoint == "" {
		cfg.Object.Endpoint = "localhost:9000"
	}
	if cfg.Object.Region == "" {
		cfg.Object.Region = "us-east-1"
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.TempRoot == "" {
		cfg.TempRoot = "/data/tmp"
	}

	if cfg.Finalizer.Workers == 0 {
		cfg.Finalizer.Workers = 4
	}
	if cfg.Finalizer.QueueSize == 0 {
		cfg.Finalizer.QueueSize = 256
	}
}
