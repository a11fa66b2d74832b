package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// envFile is read by Load when present so operators can override the
// defaults without rebuilding.
const envFile = "/etc/undeny.env"

// Config holds everything a single run needs. It is built once at startup
// and treated as read-only for the rest of the run.
type Config struct {
	// Service is the name of the host-blocking service, e.g. "denyhosts".
	Service string
	// ServiceCommand is the control command the service name is passed to.
	ServiceCommand string
	// ServiceTimeout bounds each stop/start invocation.
	ServiceTimeout time.Duration
	// DenyFiles are the files swept for the target address, in order.
	// Processing stops at the first file that cannot be rewritten.
	DenyFiles []string
	// LogPath is the append-only run log. Failure to open it is fatal.
	LogPath string
	// BackupSuffix is appended to a deny file's path to name its backup.
	BackupSuffix string
	// FileMode is restored on every rewritten deny file.
	FileMode os.FileMode
	// LockPath is the lock file guarding against concurrent sweeps.
	LockPath string
	// MetricsFile, when set, receives run counters in the Prometheus
	// textfile collector format. Empty disables the export.
	MetricsFile string
}

// Default returns the compiled-in configuration. The deny file set and
// order come from the denyhosts FAQ: hosts.deny itself plus the work
// files under /var/lib/denyhosts.
func Default() *Config {
	return &Config{
		Service:        "denyhosts",
		ServiceCommand: "service",
		ServiceTimeout: 30 * time.Second,
		DenyFiles: []string{
			"/etc/hosts.deny",
			"/var/lib/denyhosts/hosts",
			"/var/lib/denyhosts/hosts-restricted",
			"/var/lib/denyhosts/hosts-root",
			"/var/lib/denyhosts/hosts-valid",
			"/var/lib/denyhosts/users-hosts",
			"/var/lib/denyhosts/users-invalid",
		},
		LogPath:      "/root/undeny.log",
		BackupSuffix: "_orig",
		FileMode:     0644,
		LockPath:     "/run/undeny.lock",
	}
}

// Load builds the run configuration from the defaults, then the env file,
// then UNDENY_* environment variables.
func Load() *Config {
	if err := godotenv.Load(envFile); err != nil {
		log.Warn("no env file found, using defaults and environment", "path", envFile)
	}

	cfg := Default()
	if v := os.Getenv("UNDENY_SERVICE"); v != "" {
		cfg.Service = v
	}
	if v := os.Getenv("UNDENY_SERVICE_COMMAND"); v != "" {
		cfg.ServiceCommand = v
	}
	if v := os.Getenv("UNDENY_SERVICE_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ServiceTimeout = time.Duration(secs) * time.Second
		} else {
			log.Warn("invalid service timeout override, keeping default", "value", v)
		}
	}
	if v := os.Getenv("UNDENY_FILES"); v != "" {
		if files := splitFileList(v); len(files) > 0 {
			cfg.DenyFiles = files
		}
	}
	if v := os.Getenv("UNDENY_LOG"); v != "" {
		cfg.LogPath = v
	}
	if v := os.Getenv("UNDENY_LOCK"); v != "" {
		cfg.LockPath = v
	}
	if v := os.Getenv("UNDENY_METRICS_FILE"); v != "" {
		cfg.MetricsFile = v
	}
	return cfg
}

// splitFileList parses a colon-separated path list, dropping empty
// segments.
func splitFileList(raw string) []string {
	var files []string
	for _, p := range strings.Split(raw, ":") {
		if p = strings.TrimSpace(p); p != "" {
			files = append(files, p)
		}
	}
	return files
}
