package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akatashev/chouette-iot/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		APIKey:            "test-key",
		DatadogURL:        "http://example.invalid",
		DatadogLogsURL:    "http://example.invalid",
		AggregateInterval: 10 * time.Second,
		CaptureInterval:   30 * time.Second,
		ReleaseInterval:   60 * time.Second,
		MetricsBulkSize:   10000,
		LogsBulkSize:      500,
		MetricTTL:         4 * time.Hour,
		LogTTL:            4 * time.Hour,
		StorageType:       "sqlite",
		SQLitePath:        ":memory:",
		CollectorPlugins:  []string{"host"},
	}
}

func TestNewBuildsSupervisorAgainstSQLite(t *testing.T) {
	sup, err := New(testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, sup)
	assert.NoError(t, sup.Stop())
}

func TestAlignToNextBoundaryNeverNegativeOrOverInterval(t *testing.T) {
	d := alignToNextBoundary(10 * time.Second)
	assert.True(t, d >= 0 && d <= 10*time.Second)
}

func TestAlignToNextBoundaryZeroIntervalIsZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), alignToNextBoundary(0))
}
