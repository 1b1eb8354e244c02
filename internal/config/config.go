package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultPollInterval is how often the room list is re-fetched as
	// a consistency backstop for missed push events.
	DefaultPollInterval = 5 * time.Second

	// DefaultHistoryPageSize is the number of messages loaded when
	// joining a room.
	DefaultHistoryPageSize = 50
)

type Config struct {
	BaseURL         string
	WSURL           string
	PollInterval    time.Duration
	HistoryPageSize int
}

// NewConfig validates the client configuration. An empty websocket URL
// is derived from the base URL; zero interval and page size take the
// defaults.
func NewConfig(baseURL, wsURL string, pollInterval time.Duration, historyPageSize int) (*Config, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got %q", u.Scheme)
	}

	if wsURL == "" {
		wsURL = deriveWSURL(baseURL)
	}

	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}
	if pollInterval < 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}

	if historyPageSize == 0 {
		historyPageSize = DefaultHistoryPageSize
	}
	if historyPageSize < 0 {
		return nil, fmt.Errorf("history page size must be positive")
	}

	return &Config{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		WSURL:           wsURL,
		PollInterval:    pollInterval,
		HistoryPageSize: historyPageSize,
	}, nil
}

func deriveWSURL(baseURL string) string {
	ws := strings.Replace(baseURL, "https://", "wss://", 1)
	ws = strings.Replace(ws, "http://", "ws://", 1)
	return strings.TrimRight(ws, "/")
}
