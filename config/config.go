// Copyright 2025 Tasknav
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the tasknav service
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int      `yaml:"port"`
	AuthSecret      string   `yaml:"auth_secret,omitempty"`
	AllowedOrigins  []string `yaml:"allowed_origins,omitempty"`
	ShutdownTimeout string   `yaml:"shutdown_timeout,omitempty"`
}

// TrackerConfig holds settings for the upstream project tracker API
type TrackerConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms,omitempty"`
}

// CacheConfig holds response cache settings
type CacheConfig struct {
	RedisURL string `yaml:"redis_url,omitempty"`
	TTL      string `yaml:"ttl,omitempty"`
}

// TelemetryConfig holds telemetry sink settings
type TelemetryConfig struct {
	DatabaseURL  string `yaml:"database_url,omitempty"`
	QueueSize    int    `yaml:"queue_size,omitempty"`
	Workers      int    `yaml:"workers,omitempty"`
	FallbackFile string `yaml:"fallback_file,omitempty"`
}

// ArtifactsConfig holds rendered document storage settings. S3AccessKey and
// S3SecretKey are only needed when the default AWS credential chain does not
// apply.
type ArtifactsConfig struct {
	Dir         string `yaml:"dir,omitempty"`
	S3Bucket    string `yaml:"s3_bucket,omitempty"`
	S3Region    string `yaml:"s3_region,omitempty"`
	S3AccessKey string `yaml:"s3_access_key,omitempty"`
	S3SecretKey string `yaml:"s3_secret_key,omitempty"`
}

// Load reads a YAML config file, expands environment variable references,
// applies defaults, and validates the result.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FromEnv builds a Config from environment variables alone, for
// deployments that do not ship a config file.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			AuthSecret: os.Getenv("TASKNAV_AUTH_SECRET"),
		},
		Tracker: TrackerConfig{
			BaseURL: getEnv("TRACKER_BASE_URL", "http://localhost:9000"),
		},
		Cache: CacheConfig{
			RedisURL: os.Getenv("REDIS_URL"),
			TTL:      os.Getenv("CACHE_TTL"),
		},
		Telemetry: TelemetryConfig{
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			FallbackFile: os.Getenv("TELEMETRY_FALLBACK_FILE"),
		},
		Artifacts: ArtifactsConfig{
			Dir:      os.Getenv("ARTIFACTS_DIR"),
			S3Bucket: os.Getenv("ARTIFACTS_S3_BUCKET"),
			S3Region: os.Getenv("ARTIFACTS_S3_REGION"),
		},
	}

	if port := os.Getenv("PORT"); port != "" {
		if _, err := fmt.Sscanf(port, "%d", &cfg.Server.Port); err != nil {
			return nil, fmt.Errorf("invalid PORT value %q: %w", port, err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Tracker.TimeoutMs == 0 {
		c.Tracker.TimeoutMs = 10000
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "10m"
	}
	if c.Telemetry.QueueSize == 0 {
		c.Telemetry.QueueSize = 1000
	}
	if c.Telemetry.Workers == 0 {
		c.Telemetry.Workers = 2
	}
	if c.Telemetry.FallbackFile == "" {
		c.Telemetry.FallbackFile = "/tmp/tasknav_telemetry_fallback.jsonl"
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "/tmp/tasknav_artifacts"
	}
}

// Validate checks for values that would prevent the service from starting
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Tracker.BaseURL == "" {
		return fmt.Errorf("tracker base_url is required")
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("invalid cache ttl %q: %w", c.Cache.TTL, err)
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout %q: %w", c.Server.ShutdownTimeout, err)
	}
	return nil
}

// CacheTTL returns the parsed cache TTL. Validate guarantees the value parses.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.TTL)
	return d
}

// TrackerTimeout returns the upstream request timeout
func (c *Config) TrackerTimeout() time.Duration {
	return time.Duration(c.Tracker.TimeoutMs) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown deadline
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string
// Supports both ${VAR_NAME} and $VAR_NAME syntax, with ${VAR_NAME:-default}
// fallbacks. Undefined variables without a default expand to empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultVal
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GenerateExampleConfigFile generates an example configuration file
func GenerateExampleConfigFile() string {
	return `# Tasknav Runtime Configuration
# Environment variables can be referenced using ${VAR_NAME} or ${VAR_NAME:-default} syntax

server:
  port: ${PORT:-8080}
  # Set to enable bearer-token auth on /agent
  auth_secret: ${TASKNAV_AUTH_SECRET}

tracker:
  base_url: ${TRACKER_BASE_URL:-http://localhost:9000}
  timeout_ms: 10000

cache:
  # Leave redis_url empty to use the in-process cache
  redis_url: ${REDIS_URL}
  ttl: "10m"

telemetry:
  # Leave database_url empty to log telemetry to the fallback file only
  database_url: ${DATABASE_URL}
  queue_size: 1000
  workers: 2
  fallback_file: /tmp/tasknav_telemetry_fallback.jsonl

artifacts:
  dir: /tmp/tasknav_artifacts
  # Set both to upload rendered reports to S3 instead of local disk
  s3_bucket: ${ARTIFACTS_S3_BUCKET}
  s3_region: ${ARTIFACTS_S3_REGION:-us-east-1}
`
}
