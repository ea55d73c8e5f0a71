// Package config loads the daemon's settings from the environment,
// following the getEnv/getEnvInt/getEnvDuration pattern of
// snapetech-plexTuner/internal/config/config.go.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every FTPINDEXD_* setting (spec §6.3), plus the extra
// fields this daemon's store and observability surface need.
type Config struct {
	Network *net.IPNet

	Port int
	User string
	Pass string

	ScanInterval time.Duration
	ScanTimeout  time.Duration
	MaxScanTasks int

	IndexInterval  time.Duration
	IndexTimeout   time.Duration
	MaxIndexTasks  int
	MaxIndexErrors int

	OfflineDelay time.Duration

	ReverseDNSCacheSize int

	ScanDBPath  string
	IndexDBPath string

	MetricsAddr string
	Verbose     bool
	LogJSON     bool

	// SoftSignals names the OS signals that request a graceful stop
	// (spec §6.3 SOFT_SIGNALS). A second delivery of any of them
	// escalates to an immediate exit; see cmd/ftpindexd/main.go.
	SoftSignals []string
}

// Load reads the FTPINDEXD_* environment variables and validates the
// result. An invalid NETWORK, a non-positive MAX_SCAN_TASKS, or a
// non-positive MAX_INDEX_TASKS are fatal at startup.
func Load() (*Config, error) {
	networkStr := os.Getenv("FTPINDEXD_NETWORK")
	if networkStr == "" {
		return nil, fmt.Errorf("config: FTPINDEXD_NETWORK is required (CIDR, e.g. 192.168.1.0/24)")
	}
	_, network, err := net.ParseCIDR(networkStr)
	if err != nil {
		return nil, fmt.Errorf("config: FTPINDEXD_NETWORK %q is not a valid CIDR: %w", networkStr, err)
	}

	c := &Config{
		Network: network,

		Port: getEnvInt("FTPINDEXD_PORT", 21),
		User: getEnv("FTPINDEXD_USER", "anonymous"),
		Pass: getEnv("FTPINDEXD_PASSWD", "anonymous"),

		ScanInterval: getEnvDuration("FTPINDEXD_SCAN_INTERVAL", 6*time.Hour),
		ScanTimeout:  getEnvDuration("FTPINDEXD_SCAN_TIMEOUT", 5*time.Second),
		MaxScanTasks: getEnvInt("FTPINDEXD_MAX_SCAN_TASKS", 64),

		IndexInterval:  getEnvDuration("FTPINDEXD_INDEX_INTERVAL", 24*time.Hour),
		IndexTimeout:   getEnvDuration("FTPINDEXD_INDEX_TIMEOUT", 30*time.Second),
		MaxIndexTasks:  getEnvInt("FTPINDEXD_MAX_INDEX_TASKS", 4),
		MaxIndexErrors: getEnvInt("FTPINDEXD_MAX_INDEX_ERRORS", 3),

		OfflineDelay: getEnvDuration("FTPINDEXD_OFFLINE_DELAY", 48*time.Hour),

		ReverseDNSCacheSize: getEnvInt("FTPINDEXD_REVERSE_DNS_CACHE_SIZE", 4096),

		ScanDBPath:  getEnv("FTPINDEXD_SCAN_DB", "ftpindexd-hosts.db"),
		IndexDBPath: getEnv("FTPINDEXD_INDEX_DB", "ftpindexd-files.db"),

		MetricsAddr: getEnv("FTPINDEXD_METRICS_ADDR", ""),
		Verbose:     getEnvBool("FTPINDEXD_VERBOSE", false),
		LogJSON:     getEnvBool("FTPINDEXD_LOG_JSON", false),

		SoftSignals: getEnvList("FTPINDEXD_SOFT_SIGNALS", []string{"INT", "TERM"}),
	}

	if c.MaxScanTasks <= 0 {
		return nil, fmt.Errorf("config: FTPINDEXD_MAX_SCAN_TASKS must be positive, got %d", c.MaxScanTasks)
	}
	if c.MaxIndexTasks <= 0 {
		return nil, fmt.Errorf("config: FTPINDEXD_MAX_INDEX_TASKS must be positive, got %d", c.MaxIndexTasks)
	}

	return c, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
