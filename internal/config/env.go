// Package config provides environment configuration helpers for go-nailtint commands.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults used when the environment does not override them.
const (
	DefaultModelPath = "models/nails_deeplab.onnx"
	DefaultLogLevel  = "info"
)

// Env var names.
const (
	EnvPort        = "NAILTINT_PORT"
	EnvModel       = "NAILTINT_MODEL"
	EnvBackDevice  = "NAILTINT_BACK_DEVICE"
	EnvFrontDevice = "NAILTINT_FRONT_DEVICE"
	EnvLogLevel    = "NAILTINT_LOG_LEVEL"
)

// LogLevel returns the log level from NAILTINT_LOG_LEVEL or the default.
func LogLevel() string {
	return String(EnvLogLevel, DefaultLogLevel)
}

// String returns the env var value or def if unset.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int parses the env var as an integer, returning def if unset.
func Int(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("config: %s=%q is not an integer: %w", key, v, err)
	}
	return n, nil
}
