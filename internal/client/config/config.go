package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIURL         string
	SocketURL      string
	Profile        string
	PollInterval   time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
	RequestTimeout time.Duration
	Debug          bool
}

func Load() Config {
	apiURL := envOrDefault("PROLINK_API", "http://localhost:8080/api")
	socketURL := envOrDefault("PROLINK_SOCKET", "ws://localhost:8080/ws")
	profile := envOrDefault("PROLINK_PROFILE", "default")

	return Config{
		APIURL:         apiURL,
		SocketURL:      socketURL,
		Profile:        profile,
		PollInterval:   envDuration("PROLINK_POLL_SECONDS", 60) * time.Second,
		ReconnectMin:   envDuration("PROLINK_RECONNECT_MIN_SECONDS", 1) * time.Second,
		ReconnectMax:   envDuration("PROLINK_RECONNECT_MAX_SECONDS", 30) * time.Second,
		RequestTimeout: envDuration("PROLINK_REQUEST_TIMEOUT_SECONDS", 15) * time.Second,
		Debug:          os.Getenv("PROLINK_DEBUG") != "",
	}
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func envDuration(key string, fallback int) time.Duration {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil || parsed <= 0 {
		parsed = fallback
	}
	return time.Duration(parsed)
}
