// Package config loads the settings every service shares: the service name,
// the log level, and the HTTP listen address. Service-specific settings live
// with the service.
package config

import (
	"errors"
	"os"
	"strings"
)

type AppConfig struct {
	ServiceName string
	LogLevel    string
	HTTPAddr    string
}

func Load() (AppConfig, error) {
	name := strings.TrimSpace(os.Getenv("SERVICE_NAME"))
	if name == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	return AppConfig{
		ServiceName: name,
		LogLevel:    envOr("LOG_LEVEL", "info"),
		HTTPAddr:    envOr("HTTP_ADDR", ":8080"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
