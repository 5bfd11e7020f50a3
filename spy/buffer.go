package spy

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// AtomicBuffer is a view over a byte region, usually memory mapped, that offers
// the handful of accessors the ring protocol needs. All pointer arithmetic on
// shared memory lives here. Multi-byte fields use native byte order, like the
// writer. Out-of-range offsets panic.
type AtomicBuffer struct {
	data []byte
}

// NewAtomicBuffer wraps b without copying it.
func NewAtomicBuffer(b []byte) *AtomicBuffer {
	return &AtomicBuffer{data: b}
}

// Capacity is the length of the whole region, trailer included.
func (b *AtomicBuffer) Capacity() int {
	return len(b.data)
}

// VerifyAlignment checks that the region start allows aligned 64-bit atomics.
func (b *AtomicBuffer) VerifyAlignment() error {
	if len(b.data) == 0 {
		return nil
	}
	if addr := uintptr(unsafe.Pointer(&b.data[0])); addr%8 != 0 {
		return fmt.Errorf("buffer address %#x is not 8 byte aligned", addr)
	}
	return nil
}

func (b *AtomicBuffer) boundsCheck(index, length int) {
	if index < 0 || length < 0 || index > len(b.data)-length {
		panic(fmt.Sprintf("index=%d length=%d capacity=%d", index, length, len(b.data)))
	}
}

func (b *AtomicBuffer) ptr(index, length int) unsafe.Pointer {
	b.boundsCheck(index, length)
	return unsafe.Pointer(&b.data[index])
}

func (b *AtomicBuffer) GetInt32(index int) int32 {
	return *(*int32)(b.ptr(index, 4))
}

func (b *AtomicBuffer) GetInt32Volatile(index int) int32 {
	return atomic.LoadInt32((*int32)(b.ptr(index, 4)))
}

func (b *AtomicBuffer) GetInt64(index int) int64 {
	return *(*int64)(b.ptr(index, 8))
}

func (b *AtomicBuffer) GetInt64Volatile(index int) int64 {
	return atomic.LoadInt64((*int64)(b.ptr(index, 8)))
}

// PutInt32 and the ordered stores below are for writers. Spies never call them.
func (b *AtomicBuffer) PutInt32(index int, v int32) {
	*(*int32)(b.ptr(index, 4)) = v
}

func (b *AtomicBuffer) PutInt32Ordered(index int, v int32) {
	atomic.StoreInt32((*int32)(b.ptr(index, 4)), v)
}

func (b *AtomicBuffer) PutInt64Ordered(index int, v int64) {
	atomic.StoreInt64((*int64)(b.ptr(index, 8)), v)
}

// PutBytes copies src into the region at index.
func (b *AtomicBuffer) PutBytes(index int, src []byte) {
	b.boundsCheck(index, len(src))
	copy(b.data[index:], src)
}

// Bytes returns the region slice [index, index+length). The slice aliases the
// buffer; callers that keep it past the handler call must copy it.
func (b *AtomicBuffer) Bytes(index, length int) []byte {
	b.boundsCheck(index, length)
	return b.data[index : index+length : index+length]
}
