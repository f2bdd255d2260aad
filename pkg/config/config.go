package config

import "time"

// Server defaults
const (
	DefaultPort        = "8080"
	DefaultMaxMemoryMB = 48
	DefaultDataDir     = "./data/crowdwait"
	DefaultLogPath     = "./data/data.log"
	DefaultTimeZone    = "America/New_York"
	DefaultBackend     = "badger"
)

// Refresh intervals
const (
	RefreshInterval        = 24 * time.Hour
	RefreshTestingInterval = 1 * time.Minute
	RefreshTimeout         = 10 * time.Minute
	BadgerGCInterval       = 10 * time.Minute
)

// HTTP timeouts
const (
	StatsTimeout    = 5 * time.Second
	ShutdownTimeout = 10 * time.Second
)

// Export defaults
const (
	DefaultDensityPrecision = 2
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 16
	WSChannelBuffer   = 4
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)

// Kafka defaults
const (
	DefaultKafkaTopic   = "crowdwait.estimates"
	KafkaWriteTimeout   = 10 * time.Second
	KafkaPublishTimeout = 15 * time.Second
)
