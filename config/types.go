package config

// ServerConfig contains the HTTP server configuration
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// TrackerConfig contains the tunable tracking parameters. All of these may be
// hot-reloaded; the defaults follow the operator guidance shipped with the
// original deployment.
type TrackerConfig struct {
	SmoothingAlpha    float64 `yaml:"smoothingAlpha" validate:"gt=0,lte=1"`
	ActiveThresholdS  int     `yaml:"activeThresholdS" validate:"gt=0"`
	OfflineThresholdS int     `yaml:"offlineThresholdS" validate:"gt=0"`
	SweepIntervalMS   int     `yaml:"sweepIntervalMS" validate:"gt=0"`
	MaxFutureSkewH    int     `yaml:"maxFutureSkewH" validate:"gte=0"`
	QueueSize         int     `yaml:"queueSize" validate:"gt=0"`

	// SpeedCeilings maps domain name to the plausibility ceiling in m/s.
	// Observations above the ceiling keep the previous smoothed speed.
	SpeedCeilings map[string]float64 `yaml:"speedCeilings"`
}

// BroadcastConfig contains broadcast hub configuration
type BroadcastConfig struct {
	SubscriberQueue int `yaml:"subscriberQueue" validate:"gt=0"`
	SnapshotBacklog int `yaml:"snapshotBacklog" validate:"gt=0"`
}

// HistoryConfig contains history sink configuration
type HistoryConfig struct {
	Backend          string `yaml:"backend" validate:"oneof=memory redis"`
	RedisAddr        string `yaml:"redisAddr" validate:"omitempty,hostname_port"`
	RedisDB          int    `yaml:"redisDB" validate:"gte=0"`
	RetentionMinutes int    `yaml:"retentionMinutes" validate:"gt=0"`
	BatchSize        int    `yaml:"batchSize" validate:"gt=0"`
	FlushIntervalMS  int    `yaml:"flushIntervalMS" validate:"gt=0"`
	QueueSize        int    `yaml:"queueSize" validate:"gt=0"`
}

// SimulatorConfig contains synthetic track generator parameters
type SimulatorConfig struct {
	Objects    int     `yaml:"objects" validate:"gt=0"`
	Domain     string  `yaml:"domain" validate:"oneof=TRANSIT TRAIN VESSEL"`
	TickMS     int     `yaml:"tickMS" validate:"gt=0"`
	Seed       int64   `yaml:"seed"`
	CenterLat  float64 `yaml:"centerLat" validate:"gte=-90,lte=90"`
	CenterLon  float64 `yaml:"centerLon" validate:"gte=-180,lte=180"`
	RadiusKM   float64 `yaml:"radiusKM" validate:"gte=0"`
	OmitMotion bool    `yaml:"omitMotion"`
}

// GTFSRTConfig contains GTFS-Realtime vehicle position poller parameters
type GTFSRTConfig struct {
	VehiclePositionsURL string `yaml:"vehiclePositionsURL" validate:"required,url"`
	AgencyID            string `yaml:"agency_id"`
	PollIntervalMS      int    `yaml:"pollIntervalMS" validate:"gt=0"`
	TimeoutMS           int    `yaml:"timeoutMS" validate:"gt=0"`
}

// StreamConfig contains the AIS-style websocket stream client parameters
type StreamConfig struct {
	URL            string `yaml:"url" validate:"required,url"`
	APIKeyEnv      string `yaml:"apiKeyEnv"`
	ReconnectMinMS int    `yaml:"reconnectMinMS" validate:"gt=0"`
	ReconnectMaxMS int    `yaml:"reconnectMaxMS" validate:"gt=0"`
}

// WebhookConfig contains the signed ingest boundary parameters. The secret is
// referenced by environment variable name, never stored in the file.
type WebhookConfig struct {
	SecretEnv string `yaml:"secretEnv" validate:"required"`
	Source    string `yaml:"source"`
}

// AdapterConfig is one enumerated adapter definition. Exactly the section
// matching Type must be present.
type AdapterConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Type    string `yaml:"type" validate:"oneof=simulator gtfsrt aisstream webhook"`
	Enabled bool   `yaml:"enabled"`

	Simulator *SimulatorConfig `yaml:"simulator,omitempty"`
	GTFSRT    *GTFSRTConfig    `yaml:"gtfsrt,omitempty"`
	AISStream *StreamConfig    `yaml:"aisstream,omitempty"`
	Webhook   *WebhookConfig   `yaml:"webhook,omitempty"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server    ServerConfig    `yaml:"server" validate:"required"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	History   HistoryConfig   `yaml:"history"`
	Adapters  []AdapterConfig `yaml:"adapters"`
}
