// Package config defines the client configuration for sealedchat, loaded
// from a TOML file with defaults matching the reference cadence (3 second
// poll, 5 second read-receipt interval).
package config
