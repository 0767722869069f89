// Package config reads service settings from environment variables with
// sensible local defaults. Call godotenv.Load before using it so .env files
// work in development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Get returns the value of key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetInt parses key as an integer, falling back on absence or parse failure.
func GetInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

// GetFloat parses key as a float, falling back on absence or parse failure.
func GetFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: %s=%q is not a number, using %g", key, v, fallback)
		return fallback
	}
	return f
}

// GetDuration parses key as a Go duration string such as "1.5s" or "2m".
func GetDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: %s=%q is not a duration, using %s", key, v, fallback)
		return fallback
	}
	return d
}
