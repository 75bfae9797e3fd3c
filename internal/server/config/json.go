package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/accounts/internal/timex"
)

// JSONConfig is the on-disk shape of the config file. Durations accept
// strings like "15m" as well as integer nanoseconds.
type JSONConfig struct {
	EndpointAddrHTTP       string         `json:"endpoint_addr_http"`
	DatabaseDSN            string         `json:"database_dsn"`
	SecretKey              string         `json:"secret_key"`
	SessionTTL             timex.Duration `json:"session_ttl"`
	SessionCookieName      string         `json:"session_cookie_name"`
	SessionCookieSecure    bool           `json:"session_cookie_secure"`
	SessionCleanupInterval timex.Duration `json:"session_cleanup_interval"`
	LogLevel               string         `json:"log_level"`
	MetricsEnabled         bool           `json:"metrics_enabled"`
}

// parseJSON overlays values from the file at path onto config. Keys absent
// from the file keep their current value. An empty path is a no-op.
func parseJSON(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JSONConfig{
		EndpointAddrHTTP:       config.EndpointAddrHTTP,
		DatabaseDSN:            config.DatabaseDSN,
		SecretKey:              config.SecretKey,
		SessionTTL:             timex.Duration{Duration: config.SessionTTL},
		SessionCookieName:      config.SessionCookieName,
		SessionCookieSecure:    config.SessionCookieSecure,
		SessionCleanupInterval: timex.Duration{Duration: config.SessionCleanupInterval},
		LogLevel:               config.LogLevel,
		MetricsEnabled:         config.MetricsEnabled,
	}

	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.SessionTTL = c.SessionTTL.Duration
	config.SessionCookieName = c.SessionCookieName
	config.SessionCookieSecure = c.SessionCookieSecure
	config.SessionCleanupInterval = c.SessionCleanupInterval.Duration
	config.LogLevel = c.LogLevel
	config.MetricsEnabled = c.MetricsEnabled
	return nil
}
