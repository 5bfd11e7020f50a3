// Package layouts maps the files that back transport endpoints.
package layouts

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/alpacahq/streamspy/spy"
)

// MetaSize is the metadata header at the start of a streams file: the streams
// capacity then the throttle capacity, each a big-endian 64-bit value.
const MetaSize = 16

// StreamsOffset is the file offset of the streams ring region.
func StreamsOffset() int64 {
	return MetaSize
}

// ThrottleOffset is the file offset of the throttle ring region.
func ThrottleOffset(streamsCapacity int64) int64 {
	return MetaSize + streamsCapacity + spy.TrailerLength
}

// FileSize is the size of a streams file holding rings of the given capacities.
func FileSize(streamsCapacity, throttleCapacity int64) int64 {
	return ThrottleOffset(streamsCapacity) + throttleCapacity + spy.TrailerLength
}

// StreamsConfig describes how to build a StreamsLayout. Capacities are only
// read when creating; attaching discovers them from the file header.
type StreamsConfig struct {
	Path             string
	StreamsCapacity  int64
	ThrottleCapacity int64
	Readonly         bool
	SpyAt            spy.SpyPosition
}

// StreamsLayout owns the two ring regions of one streams file: the streams
// ring carrying frames and the throttle ring carrying flow control.
type StreamsLayout struct {
	path             string
	streamsCapacity  int64
	throttleCapacity int64

	streamsMapping  *mapping
	throttleMapping *mapping

	streamsBuffer  *spy.OneToOneRingBufferSpy
	throttleBuffer *spy.OneToOneRingBufferSpy
}

// NewStreamsLayout creates a zero-filled streams file when cfg.Readonly is
// false, or attaches read-only to an existing one otherwise.
func NewStreamsLayout(cfg StreamsConfig) (*StreamsLayout, error) {
	l := &StreamsLayout{path: cfg.Path}

	var (
		f   *os.File
		err error
	)
	if cfg.Readonly {
		f, err = l.attach()
	} else {
		f, err = l.create(cfg.StreamsCapacity, cfg.ThrottleCapacity)
	}
	if err != nil {
		return nil, err
	}
	// the mappings stay valid once the descriptor is closed
	defer f.Close()

	if err = l.mapRegions(f, cfg.Readonly); err != nil {
		_ = l.Close()
		return nil, err
	}

	l.streamsBuffer.SpyAt(cfg.SpyAt)
	l.throttleBuffer.SpyAt(cfg.SpyAt)

	return l, nil
}

// checkCapacity also requires a whole record alignment unit, so that the
// throttle region following the streams region stays 8 byte aligned.
func checkCapacity(capacity int64) error {
	if err := spy.CheckCapacity(capacity); err != nil {
		return err
	}
	if capacity < spy.Alignment {
		return fmt.Errorf("capacity %d is below %d: %w", capacity, spy.Alignment, spy.ErrInvalidCapacity)
	}
	return nil
}

func (l *StreamsLayout) create(streamsCapacity, throttleCapacity int64) (*os.File, error) {
	if err := checkCapacity(streamsCapacity); err != nil {
		return nil, errors.Wrap(err, "streams")
	}
	if err := checkCapacity(throttleCapacity); err != nil {
		return nil, errors.Wrap(err, "throttle")
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, UnableToCreateFile(fmt.Sprintf("%s: %v", l.path, err))
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, UnableToCreateFile(fmt.Sprintf("%s: %v", l.path, err))
	}

	// truncating a fresh file zero fills it, positions included
	if err = f.Truncate(FileSize(streamsCapacity, throttleCapacity)); err != nil {
		f.Close()
		return nil, UnableToCreateFile(fmt.Sprintf("%s: %v", l.path, err))
	}

	var meta [MetaSize]byte
	binary.BigEndian.PutUint64(meta[0:8], uint64(streamsCapacity))
	binary.BigEndian.PutUint64(meta[8:16], uint64(throttleCapacity))
	if _, err = f.WriteAt(meta[:], 0); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "write header of %s", l.path)
	}

	l.streamsCapacity = streamsCapacity
	l.throttleCapacity = throttleCapacity
	return f, nil
}

func (l *StreamsLayout) attach() (*os.File, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open streams file")
	}

	streamsCapacity, throttleCapacity, err := readHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	l.streamsCapacity = streamsCapacity
	l.throttleCapacity = throttleCapacity
	return f, nil
}

func readHeader(f *os.File) (streamsCapacity, throttleCapacity int64, err error) {
	info, err := f.Stat()
	if err != nil {
		return 0, 0, errors.Wrapf(err, "stat %s", f.Name())
	}
	if info.Size() < MetaSize {
		return 0, 0, errors.Wrapf(ErrMalformedHeader, "%s: %d bytes is shorter than the header", f.Name(), info.Size())
	}

	var meta [MetaSize]byte
	if _, err = f.ReadAt(meta[:], 0); err != nil {
		return 0, 0, errors.Wrapf(err, "read header of %s", f.Name())
	}
	streamsCapacity = int64(binary.BigEndian.Uint64(meta[0:8]))
	throttleCapacity = int64(binary.BigEndian.Uint64(meta[8:16]))

	if checkCapacity(streamsCapacity) != nil || checkCapacity(throttleCapacity) != nil {
		return 0, 0, errors.Wrapf(ErrMalformedHeader, "%s: capacities %d and %d must be powers of 2 of at least 8",
			f.Name(), streamsCapacity, throttleCapacity)
	}
	// guards the size arithmetic below against absurd header values
	const maxCapacity = 1 << 40
	if streamsCapacity > maxCapacity || throttleCapacity > maxCapacity {
		return 0, 0, errors.Wrapf(ErrMalformedHeader, "%s: capacities %d and %d are too large",
			f.Name(), streamsCapacity, throttleCapacity)
	}
	if want := FileSize(streamsCapacity, throttleCapacity); info.Size() < want {
		return 0, 0, errors.Wrapf(ErrMalformedHeader, "%s: header needs %d bytes, file has %d",
			f.Name(), want, info.Size())
	}
	return streamsCapacity, throttleCapacity, nil
}

func (l *StreamsLayout) mapRegions(f *os.File, readonly bool) (err error) {
	streamsSize := l.streamsCapacity + spy.TrailerLength
	throttleSize := l.throttleCapacity + spy.TrailerLength

	if l.streamsMapping, err = mapRegion(f, "streams", StreamsOffset(), streamsSize, readonly); err != nil {
		return err
	}
	if l.throttleMapping, err = mapRegion(f, "throttle", ThrottleOffset(l.streamsCapacity), throttleSize, readonly); err != nil {
		return err
	}

	if l.streamsBuffer, err = spy.NewOneToOneRingBufferSpy(spy.NewAtomicBuffer(l.streamsMapping.region)); err != nil {
		return errors.Wrap(err, "streams")
	}
	if l.throttleBuffer, err = spy.NewOneToOneRingBufferSpy(spy.NewAtomicBuffer(l.throttleMapping.region)); err != nil {
		return errors.Wrap(err, "throttle")
	}
	return nil
}

func (l *StreamsLayout) Path() string {
	return l.path
}

func (l *StreamsLayout) StreamsCapacity() int64 {
	return l.streamsCapacity
}

func (l *StreamsLayout) ThrottleCapacity() int64 {
	return l.throttleCapacity
}

// StreamsBuffer is the spy over the streams ring.
func (l *StreamsLayout) StreamsBuffer() *spy.OneToOneRingBufferSpy {
	return l.streamsBuffer
}

// ThrottleBuffer is the spy over the throttle ring.
func (l *StreamsLayout) ThrottleBuffer() *spy.OneToOneRingBufferSpy {
	return l.throttleBuffer
}

// Close unmaps both regions. The file is left in place for the writer and
// any other reader still using it.
func (l *StreamsLayout) Close() error {
	var firstErr error
	for _, m := range []*mapping{l.streamsMapping, l.throttleMapping} {
		if err := m.unmap(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "unmap %s", l.path)
		}
	}
	l.streamsBuffer, l.throttleBuffer = nil, nil
	return firstErr
}
