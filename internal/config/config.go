// Package config handles application configuration loading from a YAML file and environment variables.
package config

import (
	"errors"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "quizinsight/internal/utils"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable pointing at the YAML config file
const ConfigFileEnv = "QUIZINSIGHT_CONFIG_FILE"

// Collaborator modes
const (
	ModeSQL  = "sql"
	ModeHTTP = "http"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Scoring and classification policy
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents the worker's operational HTTP server configuration
type ServerConfig struct {
	WorkerPort  string   `json:"worker_port" yaml:"worker_port"`
	Debug       bool     `json:"debug" yaml:"debug"`
	LogLevel    string   `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
	// MaxHistory bounds the number of worker run records kept in memory.
	MaxHistory int `json:"max_history" yaml:"max_history" validate:"gte=0"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "http://localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "quizinsight-worker"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate" validate:"gte=0,lte=1"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
}

// EngineConfig carries every tunable policy of the recorder, classifier, scorer and aggregator
type EngineConfig struct {
	// MaxConflictRetries bounds the optimistic-concurrency retries of a single attempt.
	MaxConflictRetries int              `json:"max_conflict_retries" yaml:"max_conflict_retries" validate:"gte=0,lte=50"`
	Placement          PlacementConfig  `json:"placement" yaml:"placement"`
	Points             PointsConfig     `json:"points" yaml:"points"`
	Classifier         ClassifierConfig `json:"classifier" yaml:"classifier"`
	Worker             WorkerConfig     `json:"worker" yaml:"worker"`
	Ranking            RemoteConfig     `json:"ranking" yaml:"ranking"`
	Catalog            RemoteConfig     `json:"catalog" yaml:"catalog"`
}

// PlacementConfig holds the tier thresholds as fractions of the overall score.
// A ratio below IntermediateFrom is beginner, above AdvancedAbove is advanced,
// anything in between (inclusive) is intermediate.
type PlacementConfig struct {
	IntermediateFrom float64 `json:"intermediate_from" yaml:"intermediate_from" validate:"gte=0,lte=1"`
	AdvancedAbove    float64 `json:"advanced_above" yaml:"advanced_above" validate:"gte=0,lte=1"`
}

// PointsConfig is the dashboard points policy
type PointsConfig struct {
	PointsPerCorrect int     `json:"points_per_correct" yaml:"points_per_correct" validate:"gte=0"`
	StreakMultiplier float64 `json:"streak_multiplier" yaml:"streak_multiplier" validate:"gte=0"`
	StreakBonusCap   int     `json:"streak_bonus_cap" yaml:"streak_bonus_cap" validate:"gte=0"`
}

// ClassifierConfig controls how pending mistake records are claimed
type ClassifierConfig struct {
	BatchSize  int           `json:"batch_size" yaml:"batch_size" validate:"gte=1"`
	ClaimLease time.Duration `json:"claim_lease" yaml:"claim_lease" validate:"gt=0"`
}

// WorkerConfig controls the background classification and recompute loop
type WorkerConfig struct {
	RunInterval      time.Duration `json:"run_interval" yaml:"run_interval" validate:"gt=0"`
	MaxBatchesPerRun int           `json:"max_batches_per_run" yaml:"max_batches_per_run" validate:"gte=1"`
}

// RemoteConfig selects where a collaborator lives: in the shared database or behind HTTP
type RemoteConfig struct {
	Mode    string        `json:"mode" yaml:"mode" validate:"oneof=sql http"`
	BaseURL string        `json:"base_url" yaml:"base_url" validate:"required_if=Mode http"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when the YAML file leaves a value unset
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			WorkerPort: "8081",
			LogLevel:   "info",
			MaxHistory: DefaultMaxHistory,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: DatabaseConnMaxLifetime,
		},
		OpenTelemetry: OpenTelemetryConfig{
			Endpoint:     "localhost:4317",
			Protocol:     "grpc",
			Insecure:     true,
			ServiceName:  "quizinsight-worker",
			SamplingRate: 1.0,
		},
		Engine: DefaultEngineConfig(),
	}
}

// DefaultEngineConfig returns the stock engine policy
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxConflictRetries: 3,
		Placement: PlacementConfig{
			IntermediateFrom: 0.40,
			AdvancedAbove:    0.75,
		},
		Points: PointsConfig{
			PointsPerCorrect: 10,
			StreakMultiplier: 0.1,
			StreakBonusCap:   10,
		},
		Classifier: ClassifierConfig{
			BatchSize:  100,
			ClaimLease: 5 * time.Minute,
		},
		Worker: WorkerConfig{
			RunInterval:      WorkerCheckInterval,
			MaxBatchesPerRun: 20,
		},
		Ranking: RemoteConfig{Mode: ModeSQL, Timeout: DefaultHTTPTimeout},
		Catalog: RemoteConfig{Mode: ModeSQL, Timeout: DefaultHTTPTimeout},
	}
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load config")
	}

	config.overrideFromEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks struct constraints and the ordering of the placement thresholds
func (c *Config) Validate() error {
	if err := contextutils.ValidateStruct(c); err != nil {
		return contextutils.WrapError(err, "invalid configuration")
	}
	return c.Engine.Placement.Validate()
}

// Validate checks that 0 <= IntermediateFrom <= AdvancedAbove <= 1
func (p PlacementConfig) Validate() error {
	if p.IntermediateFrom < 0 || p.AdvancedAbove > 1 || p.IntermediateFrom > p.AdvancedAbove {
		return contextutils.NewAppError(contextutils.ErrorCodeValidationFailed, contextutils.SeverityWarn,
			"invalid placement thresholds",
			"expected 0 <= intermediate_from <= advanced_above <= 1, got "+
				strconv.FormatFloat(p.IntermediateFrom, 'f', -1, 64)+" and "+
				strconv.FormatFloat(p.AdvancedAbove, 'f', -1, 64))
	}
	return nil
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables.
// The variable name is the upper-cased yaml tag path joined by underscores, e.g. ENGINE_POINTS_POINTS_PER_CORRECT.
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" && field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(strings.Split(envVal, ",")))
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the file named by QUIZINSIGHT_CONFIG_FILE, or config.yaml when present
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to load config from %s", envPath)
		}
		return config, nil
	}

	config, err := loadConfigFromFile("config.yaml")
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return config, err
}

// loadConfigFromFile decodes a YAML file on top of DefaultConfig
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, err
	}

	return config, nil
}
