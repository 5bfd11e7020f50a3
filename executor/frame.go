package executor

import (
	"fmt"

	"github.com/alpacahq/streamspy/spy"
)

// Frame prefix carried by every record on the streams and throttle rings.
const (
	routeIDOffset         = 0
	streamIDOffset        = 8
	timestampOffset       = 16
	traceIDOffset         = 24
	FrameHeaderLength     = 32
	extensionTypeIDOffset = FrameHeaderLength
)

// Frame is a decoded view of one spied record. Payload aliases the mapped
// region and is only valid inside the handler call.
type Frame struct {
	TypeID          int32
	RouteID         int64
	StreamID        int64
	Timestamp       int64
	TraceID         int64
	ExtensionTypeID int32
	HasExtension    bool
	// Raw is set when the record is too short to carry a frame prefix.
	Raw     bool
	Payload []byte
}

// DecodeFrame reads the frame prefix of the record payload at
// [offset, offset+length) in buf.
func DecodeFrame(typeID int32, buf *spy.AtomicBuffer, offset, length int) Frame {
	f := Frame{
		TypeID:  typeID,
		Payload: buf.Bytes(offset, length),
	}
	if length < FrameHeaderLength {
		f.Raw = true
		return f
	}
	f.RouteID = buf.GetInt64(offset + routeIDOffset)
	f.StreamID = buf.GetInt64(offset + streamIDOffset)
	f.Timestamp = buf.GetInt64(offset + timestampOffset)
	f.TraceID = buf.GetInt64(offset + traceIDOffset)
	if length >= FrameHeaderLength+4 {
		f.ExtensionTypeID = buf.GetInt32(offset + extensionTypeIDOffset)
		f.HasExtension = f.ExtensionTypeID != 0
	}
	return f
}

// TypeNames resolves numeric type ids to display names.
type TypeNames map[int32]string

func (n TypeNames) Name(typeID int32) string {
	if name, ok := n[typeID]; ok {
		return name
	}
	return fmt.Sprintf("0x%08x", uint32(typeID))
}
