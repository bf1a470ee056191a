package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapGaugesDropsZeroValues(t *testing.T) {
	out := wrapGauges([]namedValue{
		{"a", 0},
		{"b", 1.5},
	}, nil, 100)
	assert.Len(t, out, 1)
	assert.Equal(t, "b", out[0].Metric)
	assert.Equal(t, 1.5, out[0].Value)
}

func TestHostPluginName(t *testing.T) {
	p := NewHostPlugin(nil, nil)
	assert.Equal(t, "host", p.Name())
	assert.ElementsMatch(t, []string{"cpu", "fs", "la", "ram"}, p.metrics_)
}
