// Package config loads the process-wide, construction-time configuration
// record. It is read once at startup via Load and never mutated after
// that — there is no mutable process-level configuration state.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// InspectorTimeout is one entry of the per-inspector timeout table.
type InspectorTimeout struct {
	Name    string
	Timeout time.Duration
}

// Config holds shared runtime configuration for the service.
type Config struct {
	Env         string
	HTTPPort    string
	MetricsAddr string
	LogLevel    string

	// Admission & scheduling (spec §5/§6).
	MaxConcurrentJobs             int
	MaxConcurrentInspectorsPerJob int
	AdmissionQueueCapacity        int
	MaxUploadBytes                int64
	AllowedMIMETypes              []string

	// Sampling (spec §4.2/§6).
	TargetFPS      int
	MaxDurationSec int

	// Per-job overall timeout (spec §4.8/§5).
	PerJobTimeout time.Duration

	// Workspace Manager (spec §4.1).
	WorkspaceBasePath string

	// Fusion (spec §4.5).
	PipelineVersion string

	// Submission rate limiting (ambient, teacher's ratelimit package).
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RateLimitCapacity int
	RateLimitRefill   float64

	// Archival sink (supplemented feature, §archive).
	ArchiveDestination string // "none", "local", "s3"
	ArchiveLocalDir    string
	ArchiveS3Bucket    string
	ArchiveS3Region    string
	ArchiveS3Endpoint  string
	ArchiveS3PathStyle bool
}

// Load reads configuration from environment variables with sane defaults
// for local development, mirroring the teacher's getEnv* helper shape.
func Load() Config {
	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		MaxConcurrentJobs:             getEnvInt("MAX_CONCURRENT_JOBS", 2),
		MaxConcurrentInspectorsPerJob: getEnvInt("MAX_CONCURRENT_INSPECTORS_PER_JOB", 4),
		AdmissionQueueCapacity:        getEnvInt("ADMISSION_QUEUE_CAPACITY", 64),
		MaxUploadBytes:                getEnvInt64("MAX_UPLOAD_BYTES", 100*1024*1024),
		AllowedMIMETypes:              getEnvList("ALLOWED_MIME_TYPES", []string{"video/mp4", "video/quicktime", "video/x-msvideo", "video/webm"}),

		TargetFPS:      getEnvInt("TARGET_FPS", 8),
		MaxDurationSec: getEnvInt("MAX_DURATION_SEC", 30),

		PerJobTimeout: getEnvDuration("PER_JOB_TIMEOUT", 10*time.Minute),

		WorkspaceBasePath: getEnv("WORKSPACE_BASE_PATH", os.TempDir()),

		PipelineVersion: getEnv("PIPELINE_VERSION", "videoscan_v1"),

		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RateLimitCapacity: getEnvInt("RATE_LIMIT_CAPACITY", 20),
		RateLimitRefill:   getEnvFloat("RATE_LIMIT_REFILL_PER_SEC", 5),

		ArchiveDestination: getEnv("ARCHIVE_DESTINATION", "none"),
		ArchiveLocalDir:    getEnv("ARCHIVE_LOCAL_DIR", "./archive"),
		ArchiveS3Bucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
		ArchiveS3Region:    getEnv("ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Endpoint:  getEnv("ARCHIVE_S3_ENDPOINT", ""),
		ArchiveS3PathStyle: getEnvBool("ARCHIVE_S3_PATH_STYLE", false),
	}
}

// InspectorTimeouts returns the per-inspector timeout overrides table,
// parsed from a "name=seconds,name=seconds" environment value (whole
// seconds; malformed pairs are skipped). Absent entries fall back to the
// registry's built-in default (spec §4.3 table).
func InspectorTimeouts() []InspectorTimeout {
	raw := os.Getenv("PER_INSPECTOR_TIMEOUT_SEC")
	if raw == "" {
		return nil
	}
	var out []InspectorTimeout
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			continue
		}
		out = append(out, InspectorTimeout{Name: strings.TrimSpace(kv[0]), Timeout: time.Duration(secs) * time.Second})
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
