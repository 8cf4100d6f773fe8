package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessorsOnNil(t *testing.T) {
	assert.Equal(t, 0, Battery(nil))
	assert.Equal(t, 0, Height(nil))
}

func TestStatic(t *testing.T) {
	p := Static{Telemetry: &Telemetry{Battery: 87, Height: 120}}

	assert.Equal(t, 87, Battery(p.Get()))
	assert.Equal(t, 120, Height(p.Get()))
	assert.Nil(t, Static{}.Get())
}
