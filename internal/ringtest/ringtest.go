// Package ringtest writes and consumes one-to-one ring buffers the way the
// external writer and the real consumer do, so spies can be tested against
// realistic traffic.
package ringtest

import (
	"github.com/alpacahq/streamspy/spy"
)

// NewRegion allocates a heap region with the given data capacity plus a trailer.
func NewRegion(capacity int) *spy.AtomicBuffer {
	return spy.NewAtomicBuffer(make([]byte, capacity+spy.TrailerLength))
}

// Producer is the single writer of a ring buffer region.
type Producer struct {
	buffer   *spy.AtomicBuffer
	capacity int
}

func NewProducer(buffer *spy.AtomicBuffer) *Producer {
	return &Producer{
		buffer:   buffer,
		capacity: buffer.Capacity() - spy.TrailerLength,
	}
}

func (p *Producer) tail() int64 {
	return p.buffer.GetInt64Volatile(p.capacity + spy.TailPositionOffset)
}

func (p *Producer) head() int64 {
	return p.buffer.GetInt64Volatile(p.capacity + spy.HeadPositionOffset)
}

// claim reserves space for a record of recordLength bytes and returns its
// index, writing a padding record first when the record does not fit before
// the end of the region. It returns -1 when the ring is full.
func (p *Producer) claim(recordLength int) int {
	required := spy.Align(recordLength, spy.Alignment)
	mask := int64(p.capacity - 1)
	head := p.head()
	tail := p.tail()

	if int64(required) > int64(p.capacity)-(tail-head) {
		return -1
	}

	padding := 0
	tailIndex := int(tail & mask)
	toBufferEnd := p.capacity - tailIndex
	if required > toBufferEnd {
		headIndex := int(head & mask)
		if required > headIndex {
			return -1
		}
		padding = toBufferEnd
	}

	p.buffer.PutInt64Ordered(p.capacity+spy.TailPositionOffset, tail+int64(required+padding))

	if padding != 0 {
		p.buffer.PutInt32(spy.TypeOffset(tailIndex), spy.PaddingMsgTypeID)
		p.buffer.PutInt32Ordered(spy.LengthOffset(tailIndex), int32(padding))
		tailIndex = 0
	}
	return tailIndex
}

// Write publishes one record. It reports false when the ring is full.
func (p *Producer) Write(typeID int32, payload []byte) bool {
	recordIndex := p.Reserve(typeID, payload)
	if recordIndex < 0 {
		return false
	}
	p.Commit(recordIndex, len(payload))
	return true
}

// Reserve claims and fills a record without committing its length, leaving it
// invisible to readers until Commit. It returns -1 when the ring is full.
func (p *Producer) Reserve(typeID int32, payload []byte) int {
	recordLength := len(payload) + spy.HeaderLength
	recordIndex := p.claim(recordLength)
	if recordIndex < 0 {
		return -1
	}
	p.buffer.PutInt32Ordered(spy.LengthOffset(recordIndex), int32(-recordLength))
	p.buffer.PutInt32(spy.TypeOffset(recordIndex), typeID)
	p.buffer.PutBytes(spy.EncodedMsgOffset(recordIndex), payload)
	return recordIndex
}

// Commit publishes a record previously returned by Reserve.
func (p *Producer) Commit(recordIndex, payloadLength int) {
	p.buffer.PutInt32Ordered(spy.LengthOffset(recordIndex), int32(payloadLength+spy.HeaderLength))
}

// Consumer is the real reader of a ring buffer region: it advances the shared
// head position and zeroes what it has consumed.
type Consumer struct {
	buffer   *spy.AtomicBuffer
	capacity int
}

func NewConsumer(buffer *spy.AtomicBuffer) *Consumer {
	return &Consumer{
		buffer:   buffer,
		capacity: buffer.Capacity() - spy.TrailerLength,
	}
}

// Read consumes every committed record up to the end of the contiguous block
// and returns the number of non-padding records seen.
func (c *Consumer) Read() int {
	headPositionIndex := c.capacity + spy.HeadPositionOffset
	head := c.buffer.GetInt64Volatile(headPositionIndex)
	headIndex := int(head & int64(c.capacity-1))
	contiguousBlockLength := c.capacity - headIndex

	messagesRead := 0
	bytesRead := 0
	for bytesRead < contiguousBlockLength {
		recordIndex := headIndex + bytesRead
		recordLength := int(c.buffer.GetInt32Volatile(spy.LengthOffset(recordIndex)))
		if recordLength <= 0 {
			break
		}
		bytesRead += spy.Align(recordLength, spy.Alignment)
		if c.buffer.GetInt32(spy.TypeOffset(recordIndex)) != spy.PaddingMsgTypeID {
			messagesRead++
		}
	}

	if bytesRead != 0 {
		c.buffer.PutBytes(headIndex, make([]byte, bytesRead))
		c.buffer.PutInt64Ordered(headPositionIndex, head+int64(bytesRead))
	}
	return messagesRead
}
