// Package config handles configuration loading for opsboard.
//
// # Sources
//
// Values are layered, later sources winning:
//
//  1. Built-in defaults (see Default)
//  2. An optional YAML or TOML file, chosen by extension
//  3. Environment variables, including those from a .env file
//
// The CLI looks for the file in --config, then OPSBOARD_CONFIG, then
// ./opsboard.yaml. Running without any file is normal.
//
// # Environment Variable Expansion
//
// File values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${OPSBOARD_JWT_SECRET}"
//
// # Environment Overrides
//
//	DB_PATH         database.path
//	PORT            port of server.http_addr
//	JWT_SECRET      auth.jwt_secret
//	SESSION_EXPIRY  auth.session_expiry
//	ADMIN_NAME      auth.admin_name
//	ADMIN_PIN       auth.admin_pin
//	LOG_LEVEL       logging.level
//	LOG_FORMAT      logging.format
//	REDIS_URL       realtime.redis_url
//	TIMEZONE        board.timezone
//
// # Example
//
//	server:
//	  http_addr: "0.0.0.0:3000"
//	  allowed_origins: ["http://kitchen.local"]
//	database:
//	  path: "./data/opsboard.db"
//	auth:
//	  session_expiry: "24h"
//	board:
//	  timezone: "Europe/London"
//	realtime:
//	  redis_url: "redis://localhost:6379/0"
//	rate_limit:
//	  requests: 200
//	  window: "15m"
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Durations use time.ParseDuration syntax.
package config
