package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Timeouts holds the environment-tunable limits of a run.
type Timeouts struct {
	Create            time.Duration // per-node create including waiting for the node to run
	Destroy           time.Duration // per-node destroy
	Deploy            time.Duration // join barrier for a deployment batch
	SSHDial           time.Duration // single SSH dial attempt
	SSHMaxRetries     int           // SSH dial retries before the node is given up
	RetryMaxAttempts  int           // provider call retries
	RetryInitialDelay time.Duration // first backoff delay for provider calls
	MaxWorkers        int           // worker pool size, zero selects the CPU default
}

// LoadTimeouts loads timeouts from the environment.
// Unset or invalid variables fall back to defaults.
//
// Environment Variables:
//   - OGC_TIMEOUT_CREATE (default: 20m)
//   - OGC_TIMEOUT_DESTROY (default: 10m)
//   - OGC_TIMEOUT_DEPLOY (default: 30m)
//   - OGC_TIMEOUT_SSH_DIAL (default: 10s)
//   - OGC_SSH_MAX_RETRIES (default: 10)
//   - OGC_RETRY_MAX_ATTEMPTS (default: 5)
//   - OGC_RETRY_INITIAL_DELAY (default: 2s)
//   - OGC_MAX_WORKERS (default: CPU count minus one)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Create:            parseDuration("OGC_TIMEOUT_CREATE", 20*time.Minute),
		Destroy:           parseDuration("OGC_TIMEOUT_DESTROY", 10*time.Minute),
		Deploy:            parseDuration("OGC_TIMEOUT_DEPLOY", 30*time.Minute),
		SSHDial:           parseDuration("OGC_TIMEOUT_SSH_DIAL", 10*time.Second),
		SSHMaxRetries:     parseInt("OGC_SSH_MAX_RETRIES", 10),
		RetryMaxAttempts:  parseInt("OGC_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("OGC_RETRY_INITIAL_DELAY", 2*time.Second),
		MaxWorkers:        parseInt("OGC_MAX_WORKERS", 0),
	}
}

// DataDir returns the directory holding the inventory.
// OGC_DATA_DIR wins, then $XDG_DATA_HOME/ogc, then ~/.local/share/ogc.
func DataDir() string {
	if dir := os.Getenv("OGC_DATA_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "ogc")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "ogc")
	}
	return ".ogc"
}

// ArtifactSink configures the optional S3 upload of retrieved artifacts.
type ArtifactSink struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// LoadArtifactSink returns nil when OGC_ARTIFACTS_S3_BUCKET is unset.
func LoadArtifactSink() *ArtifactSink {
	bucket := os.Getenv("OGC_ARTIFACTS_S3_BUCKET")
	if bucket == "" {
		return nil
	}
	return &ArtifactSink{
		Bucket:    bucket,
		Endpoint:  os.Getenv("OGC_ARTIFACTS_S3_ENDPOINT"),
		Region:    envOr("OGC_ARTIFACTS_S3_REGION", "us-east-1"),
		AccessKey: os.Getenv("OGC_ARTIFACTS_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("OGC_ARTIFACTS_S3_SECRET_KEY"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(envVar string, defaultVal int) int {
	i, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultVal
	}
	return i
}
