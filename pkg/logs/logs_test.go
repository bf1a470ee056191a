package logs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordStampsTimestampFromBody(t *testing.T) {
	r := NewRecord(map[string]interface{}{
		"message":   "boot complete",
		"timestamp": float64(1700000000),
	})
	assert.Equal(t, float64(1700000000), r.Timestamp)
	assert.Equal(t, float64(1700000000), r.RecordTimestamp())
}

func TestNewRecordDefaultsTimestampToNow(t *testing.T) {
	before := time.Now().Unix()
	r := NewRecord(map[string]interface{}{"message": "no timestamp field"})
	after := time.Now().Unix()

	assert.GreaterOrEqual(t, r.Timestamp, float64(before))
	assert.LessOrEqual(t, r.Timestamp, float64(after))
}

func TestRecordAsDictRoundTrips(t *testing.T) {
	r := NewRecord(map[string]interface{}{
		"message": "disk nearly full",
		"ddtags":  "env:prod",
	})

	raw, err := r.AsDict()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, jsonc.Unmarshal(raw, &decoded))
	assert.Equal(t, "disk nearly full", decoded["message"])
	assert.Equal(t, "env:prod", decoded["ddtags"])
}
