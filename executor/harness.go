package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"code.cloudfoundry.org/bytefmt"

	"github.com/alpacahq/streamspy/capture"
	"github.com/alpacahq/streamspy/catalog"
	"github.com/alpacahq/streamspy/layouts"
	"github.com/alpacahq/streamspy/metrics"
	"github.com/alpacahq/streamspy/spy"
	"github.com/alpacahq/streamspy/utils/idle"
	"github.com/alpacahq/streamspy/utils/log"
)

// HarnessConfig selects the streams files to follow and how to print them.
type HarnessConfig struct {
	Directory string
	Affinity  uint64
	Position  spy.SpyPosition
	// Continuous keeps polling after the rings run dry.
	Continuous bool
	Verbose    bool
	// Unordered prints frames as they are read instead of in timestamp order.
	Unordered bool

	FrameTypes     []string
	ExtensionTypes []string
	TypeNames      map[int32]string

	MaxSpins  int
	MaxYields int
	MinPark   time.Duration
	MaxPark   time.Duration

	CaptureFile string
}

// Harness polls every discovered streams file from a single goroutine.
type Harness struct {
	continuous bool
	units      []Loggable
	idle       *idle.Backoff

	layouts []*layouts.StreamsLayout
	streams []*LoggableStream
	capture *capture.Writer
}

// NewHarness discovers the streams files under cfg.Directory and attaches to
// each of them. Frames are printed to out.
func NewHarness(cfg HarnessConfig, out io.Writer) (_ *Harness, err error) {
	frameTypes, err := NewTypeFilter(cfg.FrameTypes)
	if err != nil {
		return nil, err
	}
	extensionTypes, err := NewTypeFilter(cfg.ExtensionTypes)
	if err != nil {
		return nil, err
	}

	files, err := catalog.Discover(cfg.Directory, cfg.Affinity)
	if err != nil {
		return nil, fmt.Errorf("discover streams files: %w", err)
	}

	harness := &Harness{
		continuous: cfg.Continuous,
		idle:       idle.NewBackoff(cfg.MaxSpins, cfg.MaxYields, cfg.MinPark, cfg.MaxPark),
	}
	defer func() {
		if err != nil {
			_ = harness.Close()
		}
	}()

	opts := StreamOptions{
		Out:            out,
		Gate:           NewOrderingGate(),
		FrameTypes:     frameTypes,
		ExtensionTypes: extensionTypes,
		TypeNames:      TypeNames(cfg.TypeNames),
	}
	if cfg.Unordered {
		opts.Gate = UnorderedGate
	}
	if cfg.CaptureFile != "" {
		if harness.capture, err = capture.NewWriter(cfg.CaptureFile); err != nil {
			return nil, err
		}
		opts.Capture = harness.capture
	}

	for _, file := range files {
		if cfg.Verbose {
			fmt.Fprintf(out, "Discovered: %s\n", file.Path)
		}
		layout, err := layouts.NewStreamsLayout(layouts.StreamsConfig{
			Path:     file.Path,
			Readonly: true,
			SpyAt:    cfg.Position,
		})
		if err != nil {
			return nil, err
		}
		harness.layouts = append(harness.layouts, layout)

		if cfg.Verbose {
			fmt.Fprintf(out, "Attached: %s (streams %s, throttle %s)\n", file.Path,
				bytefmt.ByteSize(uint64(layout.StreamsCapacity())),
				bytefmt.ByteSize(uint64(layout.ThrottleCapacity())))
		}
		log.Debug("attached to %s at %s", file.Path, cfg.Position)

		ls := NewLoggableStream(file.Index, layout, opts)
		harness.streams = append(harness.streams, ls)
		harness.units = append(harness.units, ls)
	}
	metrics.StreamsFiles.Set(float64(len(harness.layouts)))
	return harness, nil
}

// Rings lists every ring the harness reads, for backlog sampling.
func (h *Harness) Rings() []metrics.Ring {
	var rings []metrics.Ring
	for _, ls := range h.streams {
		rings = append(rings, ls.Rings()...)
	}
	return rings
}

// Run polls until a pass finds no work, or until ctx is done when the harness
// is continuous. Cancellation is not an error.
func (h *Harness) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		work, err := h.pass()
		if err != nil {
			return err
		}
		if work == 0 && !h.continuous {
			return nil
		}

		if err := h.idle.IdleContext(ctx, work); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (h *Harness) pass() (int, error) {
	total := 0
	for _, unit := range h.units {
		work, err := unit.Process()
		total += work
		if err != nil {
			return total, err
		}
	}
	metrics.PassesTotal.Inc()
	if total == 0 {
		metrics.IdlePassesTotal.Inc()
	}
	return total, nil
}

// Close unmaps every streams file and flushes the capture file. Any
// goroutine sampling Rings must have stopped first.
func (h *Harness) Close() error {
	var first error
	for _, l := range h.layouts {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	h.layouts = nil
	h.streams = nil
	h.units = nil
	if h.capture != nil {
		if err := h.capture.Close(); err != nil && first == nil {
			first = err
		}
		h.capture = nil
	}
	return first
}
