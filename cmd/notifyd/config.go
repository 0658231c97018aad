package main

import "time"

const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
	driverRedis    = "redis"
	driverMongo    = "mongo"
)

type appConfig struct {
	// memory | postgres: notification records and triggers
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`
	// memory | redis
	SettingsDriver string `env:"SETTINGS_DRIVER" envDefault:"memory"`
	// memory | mongo: recipient contact directory
	DirectoryDriver string `env:"DIRECTORY_DRIVER" envDefault:"memory"`

	PolicyRulesFile string `env:"POLICY_RULES_FILE"`

	PurgeInterval  time.Duration `env:"PURGE_INTERVAL" envDefault:"1h"`
	PurgeRetention time.Duration `env:"PURGE_RETENTION" envDefault:"720h"`

	HealthTimeout time.Duration `env:"HEALTH_TIMEOUT" envDefault:"3s"`
	LiveHeartbeat time.Duration `env:"LIVE_HEARTBEAT" envDefault:"30s"`
}
