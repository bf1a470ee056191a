package wrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDatadog(t *testing.T) {
	w := New("datadog", DatadogConfig{})
	_, ok := w.(*DatadogWrapper)
	assert.True(t, ok)
}

func TestNewSimple(t *testing.T) {
	w := New("simple", DatadogConfig{})
	_, ok := w.(SimpleWrapper)
	assert.True(t, ok)
}

func TestNewEmptyOrUnknownReturnsNil(t *testing.T) {
	assert.Nil(t, New("", DatadogConfig{}))
	assert.Nil(t, New("bogus", DatadogConfig{}))
}
