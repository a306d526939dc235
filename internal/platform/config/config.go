package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads environment variables from .env, or from the given paths. A
// missing file is reported as an error that callers may ignore.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvUint16 accepts decimal, 0x hex and 0o octal, so USB IDs can be
// written the way lsusb prints them.
func GetEnvUint16(key string, fallback uint16) uint16 {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.ParseUint(s, 0, 16); err == nil {
			return uint16(n)
		}
	}
	return fallback
}

func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}
