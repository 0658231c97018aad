// Package config loads typed configuration structs from environment variables.
//
// Every component of the engine owns a Config struct tagged for
// github.com/caarlos0/env (pg.Config, scheduler.Config, dispatcher.Config, ...).
// Load parses a struct once per type and caches it; a .env file in the working
// directory is read on first use through github.com/joho/godotenv.
//
//	var cfg dispatcher.Config
//	config.MustLoad(&cfg)
package config
