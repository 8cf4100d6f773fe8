package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGeometry(t *testing.T) {
	g := DefaultGeometry()
	require.NoError(t, g.Validate())

	cx, cy := g.Center()
	assert.Equal(t, 325.0, cx)
	assert.Equal(t, 250.0, cy)
	assert.InDelta(t, 97.5, g.DeadZoneX(), 1e-9)
	assert.InDelta(t, 75.0, g.DeadZoneY(), 1e-9)
	assert.InDelta(t, 16250.0, g.DesiredArea(), 1e-9)
	assert.InDelta(t, 1625.0, g.MinArea(), 1e-9)
}

func TestNewGeometry(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		height  int
		wantErr bool
	}{
		{"valid", 960, 720, false},
		{"zero width", 0, 720, true},
		{"negative height", 960, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGeometry(tt.width, tt.height)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.width, g.Width)
			assert.Equal(t, tt.height, g.Height)
		})
	}
}

func TestGeometryValidateFractions(t *testing.T) {
	g := DefaultGeometry()
	g.DeadZoneFraction = 0
	assert.Error(t, g.Validate())

	g = DefaultGeometry()
	g.MinAreaFraction = 0.2
	assert.Error(t, g.Validate(), "min area above desired area")
}

func TestGeometryIsClose(t *testing.T) {
	g := DefaultGeometry()
	assert.False(t, g.IsClose(BBox{W: 90, H: 80}))
	assert.True(t, g.IsClose(BBox{W: 130, H: 126}))
}

func TestBBoxCenter(t *testing.T) {
	x, y := BBox{X: 280, Y: 210, W: 90, H: 80}.Center()
	assert.Equal(t, 325.0, x)
	assert.Equal(t, 250.0, y)
}

func TestLargestTieBreak(t *testing.T) {
	regions := []Region{
		{Box: BBox{X: 1}, Area: 10},
		{Box: BBox{X: 2}, Area: 50},
		{Box: BBox{X: 3}, Area: 50},
		{Box: BBox{X: 4}, Area: 20},
	}

	r, ok := Largest(regions)
	require.True(t, ok)
	assert.Equal(t, 2, r.Box.X, "first encountered wins on equal area")

	_, ok = Largest(nil)
	assert.False(t, ok)
}

func TestFromRegions(t *testing.T) {
	box := BBox{X: 10, Y: 20, W: 30, H: 40}

	tests := []struct {
		name    string
		regions []Region
		minArea float64
		want    Observation
	}{
		{"no regions", nil, 100, None()},
		{"below threshold", []Region{{Box: box, Area: 99}}, 100, None()},
		{"at threshold", []Region{{Box: box, Area: 100}}, 100, None()},
		{"above threshold", []Region{{Box: box, Area: 101}}, 100, Blob(box, 101)},
		{"largest gated", []Region{{Area: 50}, {Box: box, Area: 500}}, 100, Blob(box, 500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromRegions(tt.regions, tt.minArea))
		})
	}
}

func TestGestureString(t *testing.T) {
	for g := GestureNone; g <= GestureOther; g++ {
		parsed, err := ParseGesture(g.String())
		require.NoError(t, err)
		assert.Equal(t, g, parsed)
	}

	_, err := ParseGesture("wave")
	assert.Error(t, err)
}

func TestObservationString(t *testing.T) {
	assert.Equal(t, "none", None().String())
	assert.Equal(t, "gesture(yaw-cw)", GestureOf(GestureYawCW).String())
	assert.Equal(t, "blob(x=1 y=2 w=3 h=4 area=12)", Blob(BBox{1, 2, 3, 4}, 12).String())
}
