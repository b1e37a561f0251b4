package capture

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/banshee-data/pulse.report/internal/timeutil"
)

// SyntheticConfig describes the fingertip signal a SyntheticSource renders.
type SyntheticConfig struct {
	BPM       float64 // pulse rate baked into the red channel
	Base      float64 // mean red level, 0-255
	Amplitude float64 // peak-to-baseline swing of the pulse
	Noise     float64 // uniform noise half-width added per frame
	Width     int
	Height    int
	Seed      uint64
}

// DefaultSyntheticConfig returns a 72 BPM, lightly noisy 320x240 signal.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		BPM:       72,
		Base:      150,
		Amplitude: 40,
		Noise:     0.5,
		Width:     320,
		Height:    240,
		Seed:      1,
	}
}

// SyntheticSource renders frames of a finger over a light: a bright red
// centre whose level follows a PPG-like pulse, with a darker border. Centre
// pixels are dithered so the mean over the region tracks the pulse below
// one grey level. The waveform is a function of time since Acquire, so a
// MockClock makes it fully deterministic.
type SyntheticSource struct {
	cfg   SyntheticConfig
	clock timeutil.Clock
	lease lease
}

// NewSyntheticSource creates a source rendering cfg against clock.
func NewSyntheticSource(cfg SyntheticConfig, clock timeutil.Clock) *SyntheticSource {
	if cfg.Width <= 0 {
		cfg.Width = 320
	}
	if cfg.Height <= 0 {
		cfg.Height = 240
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SyntheticSource{cfg: cfg, clock: clock}
}

// Name implements Source.
func (s *SyntheticSource) Name() string { return "synthetic" }

// Stats reports the acquisition counters of the source.
func (s *SyntheticSource) Stats() Stats { return s.lease.stats() }

// Acquire implements Source. Only one device may be live at a time.
func (s *SyntheticSource) Acquire(ctx context.Context) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.lease.take(s.Name()); err != nil {
		return nil, err
	}
	return &syntheticDevice{
		src:   s,
		start: s.clock.Now(),
		rng:   rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

type syntheticDevice struct {
	src   *SyntheticSource
	start time.Time

	mu       sync.Mutex
	rng      *rand.Rand
	seq      uint64
	released bool
	once     sync.Once
}

func (d *syntheticDevice) CurrentFrame() (Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return Frame{}, ErrDeviceReleased
	}

	cfg := d.src.cfg
	now := d.src.clock.Now()
	t := now.Sub(d.start).Seconds()

	level := cfg.Base + cfg.Amplitude*pulseShape(t*cfg.BPM/60.0)
	if cfg.Noise > 0 {
		level += cfg.Noise * (2*d.rng.Float64() - 1)
	}
	border := clampByte(level / 2)

	w, h := cfg.Width, cfg.Height
	data := make([]byte, w*h*3)
	x0, x1 := w/4, 3*w/4
	y0, y1 := h/4, 3*h/4
	for y := 0; y < h; y++ {
		row := data[y*w*3 : (y+1)*w*3]
		inY := y >= y0 && y < y1
		for x := 0; x < w; x++ {
			r := border
			if inY && x >= x0 && x < x1 {
				// stochastic rounding keeps the region mean continuous
				r = clampByte(math.Floor(level + d.rng.Float64()))
			}
			row[x*3] = r
			row[x*3+1] = 20
			row[x*3+2] = 10
		}
	}

	d.seq++
	return Frame{
		Seq:       d.seq,
		Timestamp: now,
		Width:     w,
		Height:    h,
		Format:    FormatRGB24,
		Data:      data,
	}, nil
}

func (d *syntheticDevice) Release() error {
	d.once.Do(func() {
		d.mu.Lock()
		d.released = true
		d.mu.Unlock()
		d.src.lease.give()
	})
	return nil
}

// pulseShape returns one PPG-like beat per unit of phase: a sharp systolic
// peak followed by a smaller dicrotic wave. Output lies roughly in [0, 1].
func pulseShape(phase float64) float64 {
	p := phase - math.Floor(phase)
	systolic := gauss(p, 0.20, 0.09)
	dicrotic := 0.25 * gauss(p, 0.55, 0.08)
	return systolic + dicrotic
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func clampByte(v float64) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return byte(math.Round(v))
	}
}
