// Package config loads the agent's environment-driven configuration,
// mirroring chouette_iot.ChouetteConfig from the Python original.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DataDog/viper"
	jsoniter "github.com/json-iterator/go"
)

// Config holds every environment-configurable knob from spec §6.
type Config struct {
	APIKey     string
	GlobalTags []string
	Host       string

	DatadogURL     string
	DatadogLogsURL string

	MetricsWrapper string

	AggregateInterval time.Duration
	CaptureInterval   time.Duration
	ReleaseInterval   time.Duration

	MetricsBulkSize int
	LogsBulkSize    int

	MetricTTL time.Duration
	LogTTL    time.Duration

	SendSelfMetrics bool

	CollectorPlugins []string

	StorageType string
	RedisHost   string
	RedisPort   int
	SQLitePath  string

	HistogramAggregates []string
	HistogramPercentiles []float64

	LogLevel string
}

// ErrMissingAPIKey is a ConfigError (spec §7): API_KEY is required and its
// absence is fatal at startup.
var ErrMissingAPIKey = fmt.Errorf("config: API_KEY is required")

// Load reads Config from the process environment via viper's
// AutomaticEnv binding, applying the spec §6 defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("datadog_url", "https://api.datadoghq.com/api")
	v.SetDefault("datadog_logs_url", "https://http-intake.logs.datadoghq.com/api")
	v.SetDefault("metrics_wrapper", "")
	v.SetDefault("aggregate_interval", 10)
	v.SetDefault("capture_interval", 30)
	v.SetDefault("release_interval", 60)
	v.SetDefault("metrics_bulk_size", 10000)
	v.SetDefault("logs_bulk_size", 500)
	v.SetDefault("metric_ttl", 14400)
	v.SetDefault("log_ttl", 14400)
	v.SetDefault("send_self_metrics", false)
	v.SetDefault("storage_type", "redis")
	v.SetDefault("redis_host", "redis")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("sqlite_path", "chouette.db")
	v.SetDefault("histogram_aggregates", []string{"avg", "count", "median", "max"})
	v.SetDefault("histogram_percentiles", []float64{0.95})
	v.SetDefault("log_level", "INFO")

	apiKey := v.GetString("api_key")
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := &Config{
		APIKey:               apiKey,
		GlobalTags:           jsonStringSlice(v, "global_tags"),
		Host:                 v.GetString("host"),
		DatadogURL:           v.GetString("datadog_url"),
		DatadogLogsURL:       v.GetString("datadog_logs_url"),
		MetricsWrapper:       strings.ToLower(v.GetString("metrics_wrapper")),
		AggregateInterval:    time.Duration(v.GetInt("aggregate_interval")) * time.Second,
		CaptureInterval:      time.Duration(v.GetInt("capture_interval")) * time.Second,
		ReleaseInterval:      time.Duration(v.GetInt("release_interval")) * time.Second,
		MetricsBulkSize:      v.GetInt("metrics_bulk_size"),
		LogsBulkSize:         v.GetInt("logs_bulk_size"),
		MetricTTL:            time.Duration(v.GetInt("metric_ttl")) * time.Second,
		LogTTL:               time.Duration(v.GetInt("log_ttl")) * time.Second,
		SendSelfMetrics:      v.GetBool("send_self_metrics"),
		CollectorPlugins:     jsonStringSlice(v, "collector_plugins"),
		StorageType:          strings.ToLower(v.GetString("storage_type")),
		RedisHost:            v.GetString("redis_host"),
		RedisPort:            v.GetInt("redis_port"),
		SQLitePath:           v.GetString("sqlite_path"),
		HistogramAggregates:  jsonStringSlice(v, "histogram_aggregates"),
		HistogramPercentiles: jsonFloatSlice(v, "histogram_percentiles"),
		LogLevel:             v.GetString("log_level"),
	}
	return cfg, nil
}

// jsonStringSlice decodes a JSON-array-shaped env var (spec §6:
// "GLOBAL_TAGS: JSON array of k:v strings") when present, falling back
// to whatever default SetDefault already installed.
func jsonStringSlice(v *viper.Viper, key string) []string {
	raw := v.GetString(key)
	if raw == "" {
		return v.GetStringSlice(key)
	}
	var out []string
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(raw, &out); err != nil {
		return v.GetStringSlice(key)
	}
	return out
}

// jsonFloatSlice mirrors jsonStringSlice for []float64-shaped settings
// (spec §6 HISTOGRAM_PERCENTILES): viper has no GetFloat64Slice, so the
// no-env-var path reads the default straight out of v.Get, and the
// with-env-var JSON-parse-failure path falls back to parsing each
// element of GetStringSlice.
func jsonFloatSlice(v *viper.Viper, key string) []float64 {
	raw := v.GetString(key)
	if raw == "" {
		if existing, ok := v.Get(key).([]float64); ok {
			return existing
		}
		return parseFloatSlice(v.GetStringSlice(key))
	}
	var out []float64
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(raw, &out); err != nil {
		return parseFloatSlice(v.GetStringSlice(key))
	}
	return out
}

func parseFloatSlice(values []string) []float64 {
	out := make([]float64, 0, len(values))
	for _, s := range values {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}
