package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"tagify/internal/logging"
	"tagify/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// DeliveryMode selects how image bytes are served to clients. It is
// chosen once at process start; handlers dispatch on it with an
// exhaustive switch.
type DeliveryMode string

const (
	// DeliveryProxy streams object bytes through the API, honoring
	// HTTP Range requests.
	DeliveryProxy DeliveryMode = "proxy"
	// DeliveryRedirect answers with a 307 to a presigned store URL.
	DeliveryRedirect DeliveryMode = "redirect"
	// DeliveryURL answers with a JSON body carrying a presigned URL.
	DeliveryURL DeliveryMode = "url"
)

// Config holds all application configuration.
type Config struct {
	DatabaseDir  string
	DatabasePath string
	Port         string
	MetricsPort  string

	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioSecure     bool
	BucketOriginals string
	BucketThumbs    string

	DeliveryMode  DeliveryMode
	PresignExpiry time.Duration

	ScanWorkers  int
	ScanTakeover bool

	ThumbMaxEdge int
	TagCacheTTL  time.Duration

	MetricsEnabled  bool
	LogHealthChecks bool
}

// LoadConfig loads and validates configuration from environment
// variables. It fails on anything that would leave the server unable
// to persist metadata or reach the object store.
func LoadConfig() (*Config, error) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg := &Config{
		DatabaseDir:     getEnv("DATABASE_DIR", "/database"),
		Port:            getEnv("PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MinioEndpoint:   getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:  os.Getenv("MINIO_SECRET_KEY"),
		MinioSecure:     getEnvBool("MINIO_SECURE", false),
		BucketOriginals: getEnv("MINIO_BUCKET_ORIGINALS", "tagify-originals"),
		BucketThumbs:    getEnv("MINIO_BUCKET_THUMBS", "tagify-thumbs"),
		ScanWorkers:     workers.ScanCount(),
		ScanTakeover:    getEnvBool("SCAN_TAKEOVER", false),
		ThumbMaxEdge:    getEnvInt("THUMB_MAX_EDGE", 512),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", false),
	}

	mode := DeliveryMode(strings.ToLower(getEnv("MEDIA_DELIVERY_MODE", "proxy")))
	switch mode {
	case DeliveryProxy, DeliveryRedirect, DeliveryURL:
		cfg.DeliveryMode = mode
	default:
		return nil, fmt.Errorf("invalid MEDIA_DELIVERY_MODE %q (want proxy, redirect, or url)", mode)
	}

	expires := getEnvInt("MEDIA_PRESIGNED_EXPIRES", 3600)
	if expires < 1 {
		return nil, fmt.Errorf("MEDIA_PRESIGNED_EXPIRES must be positive, got %d", expires)
	}
	cfg.PresignExpiry = time.Duration(expires) * time.Second

	ttl := getEnvInt("TAG_CACHE_TTL", 30)
	if ttl < 0 {
		return nil, fmt.Errorf("TAG_CACHE_TTL must not be negative, got %d", ttl)
	}
	cfg.TagCacheTTL = time.Duration(ttl) * time.Second

	if cfg.ThumbMaxEdge < 16 {
		return nil, fmt.Errorf("THUMB_MAX_EDGE too small: %d", cfg.ThumbMaxEdge)
	}

	var err error
	cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "tagify.db")

	if err := os.MkdirAll(cfg.DatabaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}

	logging.Info("  DATABASE_DIR:            %s", cfg.DatabaseDir)
	logging.Info("  PORT:                    %s", cfg.Port)
	logging.Info("  METRICS_PORT:            %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:         %v", cfg.MetricsEnabled)
	logging.Info("  MINIO_ENDPOINT:          %s", cfg.MinioEndpoint)
	logging.Info("  MINIO_SECURE:            %v", cfg.MinioSecure)
	logging.Info("  MINIO_BUCKET_ORIGINALS:  %s", cfg.BucketOriginals)
	logging.Info("  MINIO_BUCKET_THUMBS:     %s", cfg.BucketThumbs)
	logging.Info("  MEDIA_DELIVERY_MODE:     %s", cfg.DeliveryMode)
	logging.Info("  MEDIA_PRESIGNED_EXPIRES: %s", cfg.PresignExpiry)
	logging.Info("  SCAN_WORKERS:            %d", cfg.ScanWorkers)
	logging.Info("  SCAN_TAKEOVER:           %v", cfg.ScanTakeover)
	logging.Info("  THUMB_MAX_EDGE:          %d", cfg.ThumbMaxEdge)
	logging.Info("  TAG_CACHE_TTL:           %s", cfg.TagCacheTTL)
	logging.Info("  LOG_LEVEL:               %s", logging.GetLevel())

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logging.Warn("  Invalid %s=%q, using default %d", key, v, fallback)
	}
	return fallback
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write-test file %s: %v", testFile, err)
	}
	return nil
}
