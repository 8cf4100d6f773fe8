package rc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name  string
		v     int
		limit int
		want  int
	}{
		{"inside", 12, 30, 12},
		{"upper", 31, 30, 30},
		{"lower", -250, 100, -100},
		{"zero", 0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.v, tt.limit))
		})
	}
}

func TestClampFloatTruncatesTowardZero(t *testing.T) {
	assert.Equal(t, 18, ClampFloat(18.9, 30))
	assert.Equal(t, -18, ClampFloat(-18.9, 30))
	assert.Equal(t, 30, ClampFloat(1e6, 30))
	assert.Equal(t, -100, ClampFloat(-1e6, 100))
}

func TestVelocityClamp(t *testing.T) {
	v := Velocity{LR: 150, FB: -80, UD: 20, Yaw: -101}.Clamp(DefaultLimits)
	assert.Equal(t, Velocity{LR: 100, FB: -30, UD: 20, Yaw: -100}, v)
}

func TestVelocityIsHover(t *testing.T) {
	assert.True(t, Hover.IsHover())
	assert.True(t, Velocity{}.IsHover())
	assert.False(t, Velocity{Yaw: 1}.IsHover())
}

func TestLimitsValidate(t *testing.T) {
	assert.NoError(t, DefaultLimits.Validate())
	assert.Error(t, Limits{LR: 100, FB: 0, UD: 100, Yaw: 100}.Validate())
	assert.Error(t, Limits{LR: 101, FB: 30, UD: 100, Yaw: 100}.Validate())
}
