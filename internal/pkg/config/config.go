// Package config reads application settings from a YAML file with environment
// variable overrides.
package config

import (
	"io"
	"time"
)

// TimeConfig reads integer values as durations of the named unit.
type TimeConfig interface {
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration
	GetHour(key string) time.Duration
	GetDay(key string) time.Duration
}

// NumberConfig reads numeric values. Missing or malformed keys yield zero.
type NumberConfig interface {
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint16(key string) uint16
	GetUint64(key string) uint64
	GetFloat64(key string) float64
}

// Config is the read-only view of the application configuration.
type Config interface {
	io.Closer
	TimeConfig
	NumberConfig

	GetBool(key string) bool
	GetString(key string) string
	// GetBinary decodes a base64 value; invalid input yields nil.
	GetBinary(key string) []byte
	// GetArray splits a comma separated value, trimming blanks.
	GetArray(key string) []string
	// GetMap parses "k:v,k:v" pairs.
	GetMap(key string) map[string]string
}
