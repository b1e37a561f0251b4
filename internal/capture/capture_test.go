package capture

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulse.report/internal/timeutil"
)

func TestPixelFormat(t *testing.T) {
	assert.Equal(t, 3, FormatRGB24.BytesPerPixel())
	assert.Equal(t, 4, FormatRGBA32.BytesPerPixel())
	assert.Equal(t, "rgb24", FormatRGB24.String())
	assert.Equal(t, "rgba32", FormatRGBA32.String())
	assert.Equal(t, "unknown", PixelFormat(9).String())
}

func TestFrameFromImage(t *testing.T) {
	// non-zero origin forces a copy into a packed buffer
	img := image.NewNRGBA(image.Rect(2, 3, 6, 5))
	img.Set(2, 3, color.NRGBA{R: 200, G: 1, B: 2, A: 255})

	f := FrameFromImage(img)

	assert.Equal(t, 4, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, FormatRGBA32, f.Format)
	require.Len(t, f.Data, 4*2*4)
	assert.Equal(t, byte(200), f.Data[0])
}

func TestSyntheticSourceIsExclusive(t *testing.T) {
	src := NewSyntheticSource(DefaultSyntheticConfig(), timeutil.NewMockClock(time.Unix(0, 0)))

	dev, err := src.Acquire(context.Background())
	require.NoError(t, err)

	_, err = src.Acquire(context.Background())
	require.ErrorIs(t, err, ErrDeviceUnavailable)

	require.NoError(t, dev.Release())
	require.NoError(t, dev.Release())

	stats := src.Stats()
	assert.Equal(t, 1, stats.Acquired)
	assert.Equal(t, 1, stats.Released, "second Release must not release again")
	assert.False(t, stats.Held)

	dev2, err := src.Acquire(context.Background())
	require.NoError(t, err)
	defer dev2.Release()
}

func TestSyntheticDeviceAfterRelease(t *testing.T) {
	src := NewSyntheticSource(DefaultSyntheticConfig(), timeutil.NewMockClock(time.Unix(0, 0)))
	dev, err := src.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, dev.Release())

	_, err = dev.CurrentFrame()
	assert.ErrorIs(t, err, ErrDeviceReleased)
}

func TestSyntheticSourceRejectsCancelledContext(t *testing.T) {
	src := NewSyntheticSource(DefaultSyntheticConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, src.Stats().Held)
}

func TestSyntheticFramesFollowThePulse(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.Noise = 0
	cfg.Width, cfg.Height = 8, 8
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	src := NewSyntheticSource(cfg, clock)

	dev, err := src.Acquire(context.Background())
	require.NoError(t, err)
	defer dev.Release()

	beat := time.Duration(float64(time.Minute) / cfg.BPM)

	// systolic peak sits at 20% of the beat, the trough near 90%
	clock.Advance(beat / 5)
	peak, err := dev.CurrentFrame()
	require.NoError(t, err)

	clock.Advance(beat * 7 / 10)
	trough, err := dev.CurrentFrame()
	require.NoError(t, err)

	centre := func(f Frame) byte { return f.Data[(4*f.Width+4)*3] }
	corner := func(f Frame) byte { return f.Data[0] }

	assert.Greater(t, centre(peak), centre(trough))
	assert.Less(t, corner(peak), centre(peak), "border should be darker than the centre")
	assert.Equal(t, uint64(1), peak.Seq)
	assert.Equal(t, uint64(2), trough.Seq)
}

func TestDisabledSource(t *testing.T) {
	src := NewDisabledSource()
	dev, err := src.Acquire(context.Background())
	assert.Nil(t, dev)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, "disabled", src.Name())
}

func writePNG(t *testing.T, path string, red uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: red, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestImageDirSourceReplaysInOrder(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "002.png"), 20)
	writePNG(t, filepath.Join(dir, "001.png"), 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644))

	src := NewImageDirSource(dir, true, nil)
	dev, err := src.Acquire(context.Background())
	require.NoError(t, err)
	defer dev.Release()

	var reds []byte
	for i := 0; i < 3; i++ {
		f, err := dev.CurrentFrame()
		require.NoError(t, err)
		reds = append(reds, f.Data[0])
	}
	assert.Equal(t, []byte{10, 20, 10}, reds)
}

func TestImageDirSourceHoldsLastFrameWithoutLoop(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 1)
	writePNG(t, filepath.Join(dir, "b.png"), 2)

	dev, err := NewImageDirSource(dir, false, nil).Acquire(context.Background())
	require.NoError(t, err)
	defer dev.Release()

	var last byte
	for i := 0; i < 4; i++ {
		f, err := dev.CurrentFrame()
		require.NoError(t, err)
		last = f.Data[0]
	}
	assert.Equal(t, byte(2), last)
}

func TestImageDirSourceUnavailable(t *testing.T) {
	_, err := NewImageDirSource(filepath.Join(t.TempDir(), "missing"), false, nil).Acquire(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	_, err = NewImageDirSource(t.TempDir(), false, nil).Acquire(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestImageDirDeviceBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0644))

	dev, err := NewImageDirSource(dir, false, nil).Acquire(context.Background())
	require.NoError(t, err)
	defer dev.Release()

	_, err = dev.CurrentFrame()
	assert.Error(t, err)
}

func TestImageDirSourceSkipsEscapingSymlink(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	writePNG(t, filepath.Join(dir, "001.png"), 10)
	writePNG(t, filepath.Join(outside, "secret.png"), 99)
	if err := os.Symlink(filepath.Join(outside, "secret.png"), filepath.Join(dir, "002.png")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	dev, err := NewImageDirSource(dir, true, nil).Acquire(context.Background())
	require.NoError(t, err)
	defer dev.Release()

	for i := 0; i < 3; i++ {
		f, err := dev.CurrentFrame()
		require.NoError(t, err)
		assert.Equal(t, byte(10), f.Data[0])
	}
}
