package executor

import (
	"fmt"
	"io"

	"github.com/alpacahq/streamspy/capture"
	"github.com/alpacahq/streamspy/layouts"
	"github.com/alpacahq/streamspy/metrics"
	"github.com/alpacahq/streamspy/spy"
)

// Ring names used in output and metrics labels.
const (
	StreamsRing  = "streams"
	ThrottleRing = "throttle"
)

// Frame outcomes used as metrics labels.
const (
	outcomeLogged   = "logged"
	outcomeFiltered = "filtered"
	outcomeDeferred = "deferred"
)

// Loggable is one unit of work driven by the harness. Process returns how many
// records it looked at during the call.
type Loggable interface {
	Process() (int, error)
}

// CaptureSink receives admitted frames. *capture.Writer satisfies it.
type CaptureSink interface {
	Write(rec capture.Record)
}

// StreamOptions are shared by every LoggableStream of a harness.
type StreamOptions struct {
	Out            io.Writer
	Gate           Gate
	FrameTypes     *TypeFilter
	ExtensionTypes *TypeFilter
	TypeNames      TypeNames
	Capture        CaptureSink
}

// LoggableStream prints the frames of both rings of one streams file.
type LoggableStream struct {
	index  int
	layout *layouts.StreamsLayout
	opts   StreamOptions

	streams  *ringHandler
	throttle *ringHandler
}

func NewLoggableStream(index int, layout *layouts.StreamsLayout, opts StreamOptions) *LoggableStream {
	if opts.Gate == nil {
		opts.Gate = UnorderedGate
	}
	ls := &LoggableStream{index: index, layout: layout, opts: opts}
	ls.streams = &ringHandler{owner: ls, ring: StreamsRing}
	ls.throttle = &ringHandler{owner: ls, ring: ThrottleRing}
	return ls
}

// Process reads at most one record from each ring.
func (ls *LoggableStream) Process() (int, error) {
	ls.streams.seen = 0
	ls.throttle.seen = 0

	if _, err := ls.layout.StreamsBuffer().SpyLimit(ls.streams, 1); err != nil {
		return ls.streams.seen, fmt.Errorf("data%d %s: %w", ls.index, StreamsRing, err)
	}
	if _, err := ls.layout.ThrottleBuffer().SpyLimit(ls.throttle, 1); err != nil {
		return ls.streams.seen + ls.throttle.seen, fmt.Errorf("data%d %s: %w", ls.index, ThrottleRing, err)
	}
	return ls.streams.seen + ls.throttle.seen, nil
}

func (ls *LoggableStream) Index() int {
	return ls.index
}

// Rings exposes the positions of both rings for backlog sampling.
func (ls *LoggableStream) Rings() []metrics.Ring {
	file := fmt.Sprintf("data%d", ls.index)
	return []metrics.Ring{
		{File: file, Name: StreamsRing, Positions: ls.layout.StreamsBuffer()},
		{File: file, Name: ThrottleRing, Positions: ls.layout.ThrottleBuffer()},
	}
}

type ringHandler struct {
	owner *LoggableStream
	ring  string
	seen  int
}

func (h *ringHandler) OnMessage(typeID int32, buf *spy.AtomicBuffer, offset, length int) bool {
	h.seen++
	return h.owner.onFrame(h.ring, DecodeFrame(typeID, buf, offset, length))
}

// onFrame returns false only when the gate defers the frame, so the spy hands
// it over again on a later pass.
func (ls *LoggableStream) onFrame(ring string, f Frame) bool {
	name := ls.opts.TypeNames.Name(f.TypeID)
	if !ls.opts.FrameTypes.Match(name) ||
		(f.HasExtension && !ls.opts.ExtensionTypes.Match(ls.opts.TypeNames.Name(f.ExtensionTypeID))) {
		metrics.FramesTotal.WithLabelValues(ring, outcomeFiltered).Inc()
		return true
	}
	if !ls.opts.Gate.Admit(f.Timestamp) {
		metrics.FramesTotal.WithLabelValues(ring, outcomeDeferred).Inc()
		return false
	}

	ls.print(ring, name, f)
	if ls.opts.Capture != nil {
		ls.opts.Capture.Write(capture.Record{
			Index:     ls.index,
			Ring:      ring,
			TypeID:    f.TypeID,
			Timestamp: f.Timestamp,
			Payload:   f.Payload,
		})
	}
	metrics.FramesTotal.WithLabelValues(ring, outcomeLogged).Inc()
	return true
}

func (ls *LoggableStream) print(ring, name string, f Frame) {
	if f.Raw {
		fmt.Fprintf(ls.opts.Out, "[%02d] [%s] %s length=%d\n",
			ls.index, ring, name, len(f.Payload))
		return
	}
	if f.HasExtension {
		fmt.Fprintf(ls.opts.Out, "[%02d] [0x%016x] [%s] %s route=0x%016x stream=0x%016x trace=0x%016x ext=%s length=%d\n",
			ls.index, f.Timestamp, ring, name, f.RouteID, f.StreamID, f.TraceID,
			ls.opts.TypeNames.Name(f.ExtensionTypeID), len(f.Payload))
		return
	}
	fmt.Fprintf(ls.opts.Out, "[%02d] [0x%016x] [%s] %s route=0x%016x stream=0x%016x trace=0x%016x length=%d\n",
		ls.index, f.Timestamp, ring, name, f.RouteID, f.StreamID, f.TraceID, len(f.Payload))
}
