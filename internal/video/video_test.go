package video

import (
	"context"
	"image"
	"image/color"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigArgs(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	args := config.Args()
	assert.Contains(t, args, "pipe:0")
	assert.Contains(t, args, "960x720")
	assert.Contains(t, args, "bgr24")
	assert.Equal(t, "pipe:1", args[len(args)-1])
	assert.NotContains(t, args, "-hwaccel")

	config.HWAccel = HWAccelAuto
	assert.Contains(t, config.Args(), "-hwaccel")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"odd height", func(c *Config) { c.Height = 721 }},
		{"unknown hwaccel", func(c *Config) { c.HWAccel = "opencl" }},
		{"negative age", func(c *Config) { c.MaxFrameAge = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	f := FromImage(img)
	require.True(t, f.Valid())
	assert.Equal(t, []byte{30, 20, 10, 50, 100, 200}, f.Data)
	assert.Equal(t, img.Pix, f.RGBA().Pix)
}

func TestFrameInvalid(t *testing.T) {
	f := Frame{Width: 2, Height: 2, Data: make([]byte, 5)}
	assert.False(t, f.Valid())
	assert.Equal(t, image.Rect(0, 0, 2, 2), f.RGBA().Bounds())
}

func TestDecoderPassThrough(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat is not available")
	}

	config := Config{Width: 2, Height: 2}
	d := NewDecoder(config, WithCommand(func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "cat")
	}))

	_, ok := d.Frame()
	assert.False(t, ok)

	_, err := d.Write([]byte{1})
	assert.ErrorIs(t, err, ErrNotRunning)

	done, err := d.Start(context.Background())
	require.NoError(t, err)
	defer d.Close()

	payload := make([]byte, FrameSize(2, 2))
	for i := range payload {
		payload[i] = byte(i)
	}
	_, err = d.Write(payload)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := d.Frame()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	f, _ := d.Frame()
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, payload, f.Data)

	require.NoError(t, d.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("decoder did not stop")
	}
	assert.False(t, d.IsRunning())
}

func TestDecoderStaleFrame(t *testing.T) {
	now := time.Unix(1000, 0)
	d := NewDecoder(Config{Width: 2, Height: 2, MaxFrameAge: time.Second}, WithClock(func() time.Time { return now }))
	d.frame = Frame{Seq: 1, Timestamp: now, Width: 2, Height: 2, Data: make([]byte, 12)}

	_, ok := d.Frame()
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = d.Frame()
	assert.False(t, ok)
}
