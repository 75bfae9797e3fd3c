package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/accounts/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-d string   PostgreSQL DSN
//	-s string   session cookie HMAC secret
//	-t int      session lifetime, minutes
//	-n string   session cookie name
//	-i int      expired session cleanup interval, minutes
//	-l string   log level
//	-secure     mark the session cookie Secure
//	-metrics    expose /metrics
//
// Arguments belonging to other parsers (such as -c) are filtered out first.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-t", "-n", "-i", "-l", "-secure", "-metrics"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "session secret key")
	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session lifetime (in minutes)")
	fs.StringVar(&config.SessionCookieName, "n", config.SessionCookieName, "session cookie name")
	cleanup := fs.Int("i", int(config.SessionCleanupInterval.Minutes()), "expired session cleanup interval (in minutes)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.BoolVar(&config.SessionCookieSecure, "secure", config.SessionCookieSecure, "secure session cookie")
	fs.BoolVar(&config.MetricsEnabled, "metrics", config.MetricsEnabled, "expose prometheus metrics")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
	config.SessionCleanupInterval = time.Duration(*cleanup) * time.Minute
	return nil
}
