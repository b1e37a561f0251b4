package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/security"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

var logf = monitoring.Component("capture")

var frameExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".webp": true,
}

// ImageDirSource replays a directory of still frames (PNG, JPEG, BMP or
// WebP) in file-name order. Each CurrentFrame call decodes the next file;
// with Loop set the sequence wraps, otherwise the last frame repeats.
type ImageDirSource struct {
	Dir   string
	Loop  bool
	clock timeutil.Clock
	lease lease
}

// NewImageDirSource creates a source replaying dir.
func NewImageDirSource(dir string, loop bool, clock timeutil.Clock) *ImageDirSource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ImageDirSource{Dir: dir, Loop: loop, clock: clock}
}

// Name implements Source.
func (s *ImageDirSource) Name() string { return "images:" + s.Dir }

// Stats reports the acquisition counters of the source.
func (s *ImageDirSource) Stats() Stats { return s.lease.stats() }

// Acquire lists the directory and fails with ErrDeviceUnavailable when it is
// missing or holds no frames.
func (s *ImageDirSource) Acquire(ctx context.Context) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := listFrames(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %v: %w", s.Dir, err, ErrDeviceUnavailable)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no frames in %s: %w", s.Dir, ErrDeviceUnavailable)
	}
	if err := s.lease.take(s.Name()); err != nil {
		return nil, err
	}
	return &imageDirDevice{src: s, files: files}, nil
}

func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := security.CheckWithinDir(path, dir); err != nil {
			logf("skipping %s: %v", e.Name(), err)
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

type imageDirDevice struct {
	src   *ImageDirSource
	files []string

	mu       sync.Mutex
	next     int
	seq      uint64
	released bool
	once     sync.Once
}

func (d *imageDirDevice) CurrentFrame() (Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return Frame{}, ErrDeviceReleased
	}

	path := d.files[d.next]
	switch {
	case d.next+1 < len(d.files):
		d.next++
	case d.src.Loop:
		d.next = 0
	}

	img, err := decodeFile(path)
	if err != nil {
		return Frame{}, err
	}
	frame := FrameFromImage(img)
	d.seq++
	frame.Seq = d.seq
	frame.Timestamp = d.src.clock.Now()
	return frame, nil
}

func (d *imageDirDevice) Release() error {
	d.once.Do(func() {
		d.mu.Lock()
		d.released = true
		d.mu.Unlock()
		d.src.lease.give()
	})
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}
