package servo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/visual-servo/internal/rc"
	"github.com/roman-kulish/visual-servo/internal/target"
)

// box centred at (cx, cy) with the given size
func boxAt(cx, cy, w, h int) target.BBox {
	return target.BBox{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

func newController(t *testing.T) *Controller {
	t.Helper()

	config := DefaultConfig()
	require.NoError(t, config.Validate())
	return New(target.DefaultGeometry(), config)
}

func TestControllerCenteredScenario(t *testing.T) {
	c := newController(t)
	box := target.BBox{X: 280, Y: 210, W: 90, H: 80}

	e := c.Measure(box)
	assert.Equal(t, 0.0, e.X)
	assert.Equal(t, 0.0, e.Y)
	assert.InDelta(t, 9050.0, e.Area, 1e-6)

	v := c.Command(target.Blob(box, 7000))
	assert.Equal(t, 0, v.LR)
	assert.Equal(t, 0, v.Yaw)
	assert.Equal(t, 0, v.UD)
	assert.Equal(t, 18, v.FB, "0.002 * 9050 truncated")
}

func TestControllerYawDeadZone(t *testing.T) {
	c := newController(t)

	tests := []struct {
		name string
		errX int
		want int
	}{
		{"centre", 0, 0},
		{"inside right", 97, 0},
		{"inside left", -97, 0},
		{"outside right", 100, 40},
		{"outside left", -100, -40},
		{"saturated", 320, 100},
		{"saturated left", -320, -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := boxAt(325+tt.errX, 250, 20, 20)
			v := c.Command(target.Blob(box, 400))
			assert.Equal(t, tt.want, v.Yaw)
			assert.Equal(t, 0, v.LR)
		})
	}
}

func TestControllerVerticalDeadZone(t *testing.T) {
	c := newController(t)

	tests := []struct {
		name string
		errY int
		want int
	}{
		{"inside above", 75, 0},
		{"inside below", -75, 0},
		{"above", 80, 32},
		{"below", -80, -32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// positive error means the target sits above centre, smaller row
			box := boxAt(325, 250-tt.errY, 20, 20)
			v := c.Command(target.Blob(box, 400))
			assert.Equal(t, tt.want, v.UD)
		})
	}
}

func TestControllerForwardHasNoDeadZone(t *testing.T) {
	c := newController(t)

	tests := []struct {
		name string
		w, h int
		want int
	}{
		{"slightly small", 127, 127, 0},  // 16250-16129=121, 0.242
		{"small", 100, 100, 12},          // 6250 * 0.002 = 12.5
		{"tiny", 10, 10, 30},             // saturates
		{"slightly large", 130, 130, -1}, // -650 * 0.002 = -1.3
		{"huge", 300, 300, -30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Command(target.Blob(boxAt(325, 250, tt.w, tt.h), float64(tt.w*tt.h)))
			assert.Equal(t, tt.want, v.FB)
			assert.LessOrEqual(t, v.FB, rc.DefaultLimits.FB)
			assert.GreaterOrEqual(t, v.FB, -rc.DefaultLimits.FB)
		})
	}
}

func TestControllerNonBlobHovers(t *testing.T) {
	c := newController(t)

	assert.Equal(t, rc.Hover, c.Command(target.None()))
	assert.Equal(t, rc.Hover, c.Command(target.GestureOf(target.GestureUp)))
}

func TestControllerIsPure(t *testing.T) {
	c := newController(t)
	obs := target.Blob(boxAt(500, 100, 60, 40), 2000)

	first := c.Command(obs)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Command(obs))
	}
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	config.Gains.Forward = -1
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Limits.FB = 0
	assert.Error(t, config.Validate())
}
