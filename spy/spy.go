package spy

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Handler receives the records a spy reads. The payload occupies
// [offset, offset+length) of buf. Returning false stops the current batch and
// leaves the record to be delivered again on the next call.
type Handler interface {
	OnMessage(typeID int32, buf *AtomicBuffer, offset, length int) bool
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(typeID int32, buf *AtomicBuffer, offset, length int) bool

func (f HandlerFunc) OnMessage(typeID int32, buf *AtomicBuffer, offset, length int) bool {
	return f(typeID, buf, offset, length)
}

// RingBufferSpy is the read side of a ring buffer that never moves the shared
// consumer position.
type RingBufferSpy interface {
	Buffer() *AtomicBuffer
	Capacity() int
	ProducerPosition() int64
	ConsumerPosition() int64
	Position() int64
	ResetHead()
	SpyAt(position SpyPosition)
	Spy(handler Handler) (int, error)
	SpyLimit(handler Handler, messageCountLimit int) (int, error)
}

// OneToOneRingBufferSpy follows a single-producer single-consumer ring buffer
// with its own cursor. Instances are independent of each other and of the real
// consumer even when they view the same region.
type OneToOneRingBufferSpy struct {
	buffer   *AtomicBuffer
	capacity int
	// head is private to this spy and never published to the trailer.
	head atomic.Int64
}

// NewOneToOneRingBufferSpy wraps a region made of a power-of-two data area
// followed by TrailerLength bytes of trailer. The cursor starts at zero.
func NewOneToOneRingBufferSpy(buffer *AtomicBuffer) (*OneToOneRingBufferSpy, error) {
	capacity := buffer.Capacity() - TrailerLength
	if err := CheckCapacity(int64(capacity)); err != nil {
		return nil, err
	}
	if err := buffer.VerifyAlignment(); err != nil {
		return nil, err
	}
	return &OneToOneRingBufferSpy{
		buffer:   buffer,
		capacity: capacity,
	}, nil
}

func (s *OneToOneRingBufferSpy) Buffer() *AtomicBuffer {
	return s.buffer
}

// Capacity of the data area, trailer excluded.
func (s *OneToOneRingBufferSpy) Capacity() int {
	return s.capacity
}

// ProducerPosition is the total number of bytes the producer has claimed.
func (s *OneToOneRingBufferSpy) ProducerPosition() int64 {
	return s.buffer.GetInt64Volatile(s.capacity + TailPositionOffset)
}

// ConsumerPosition is the real consumer's position, not this spy's.
func (s *OneToOneRingBufferSpy) ConsumerPosition() int64 {
	return s.buffer.GetInt64Volatile(s.capacity + HeadPositionOffset)
}

// Position is this spy's private cursor.
func (s *OneToOneRingBufferSpy) Position() int64 {
	return s.head.Load()
}

// ResetHead moves the private cursor to the real consumer's position.
func (s *OneToOneRingBufferSpy) ResetHead() {
	s.head.Store(s.ConsumerPosition())
}

// SpyAt positions the private cursor.
func (s *OneToOneRingBufferSpy) SpyAt(position SpyPosition) {
	switch position {
	case HEAD:
		s.ResetHead()
	case TAIL:
		s.head.Store(s.ProducerPosition())
	default:
		s.head.Store(0)
	}
}

func (s *OneToOneRingBufferSpy) Spy(handler Handler) (int, error) {
	return s.SpyLimit(handler, math.MaxInt32)
}

// SpyLimit delivers up to messageCountLimit committed records to handler and
// returns how many were accepted. Padding records are skipped but still
// consumed. When the handler declines a record only that record is rolled
// back. The cursor is advanced on every return path, a handler panic included.
func (s *OneToOneRingBufferSpy) SpyLimit(handler Handler, messageCountLimit int) (messagesRead int, err error) {
	buffer := s.buffer
	capacity := s.capacity
	head := s.head.Load()

	headIndex := int(head & int64(capacity-1))
	contiguousBlockLength := capacity - headIndex

	available := s.ProducerPosition() - head
	if available <= 0 {
		return 0, nil
	}
	scanLimit := contiguousBlockLength
	if available < int64(scanLimit) {
		scanLimit = int(available)
	}

	bytesRead := 0
	defer func() {
		if bytesRead != 0 {
			s.head.Store(head + int64(bytesRead))
		}
	}()

	for bytesRead < scanLimit && messagesRead < messageCountLimit {
		recordIndex := headIndex + bytesRead
		recordLength := int(buffer.GetInt32Volatile(LengthOffset(recordIndex)))
		if recordLength <= 0 {
			break
		}

		if recordLength < HeaderLength {
			return messagesRead, fmt.Errorf("record at index %d with length %d: %w",
				recordIndex, recordLength, ErrMalformedRecord)
		}

		alignedLength := Align(recordLength, Alignment)
		if alignedLength > contiguousBlockLength-bytesRead {
			return messagesRead, fmt.Errorf("record at index %d with length %d, %d bytes to end of region: %w",
				recordIndex, recordLength, contiguousBlockLength-bytesRead, ErrRecordOverrun)
		}
		bytesRead += alignedLength

		typeID := buffer.GetInt32(TypeOffset(recordIndex))
		if typeID == PaddingMsgTypeID {
			continue
		}

		if !handler.OnMessage(typeID, buffer, EncodedMsgOffset(recordIndex), recordLength-HeaderLength) {
			bytesRead -= alignedLength
			break
		}
		messagesRead++
	}

	return messagesRead, nil
}
