package spy

import "errors"

const (
	// HeaderLength is the size of the record header: int32 length then int32 type id.
	HeaderLength = 8
	// Alignment every record is padded to.
	Alignment = HeaderLength
	// PaddingMsgTypeID marks filler written by the producer before it wraps.
	PaddingMsgTypeID int32 = -1
)

// ErrRecordOverrun means a record header claims more bytes than remain before
// the physical end of the region. The producer always pads before wrapping, so
// this points at a layout mismatch or corruption.
var ErrRecordOverrun = errors.New("record overruns the contiguous block")

// ErrMalformedRecord means a committed record is shorter than its own header.
var ErrMalformedRecord = errors.New("record shorter than its header")

// LengthOffset is the offset of the length field for the record at recordIndex.
func LengthOffset(recordIndex int) int {
	return recordIndex
}

// TypeOffset is the offset of the type id field for the record at recordIndex.
func TypeOffset(recordIndex int) int {
	return recordIndex + 4
}

// EncodedMsgOffset is the offset of the payload for the record at recordIndex.
func EncodedMsgOffset(recordIndex int) int {
	return recordIndex + HeaderLength
}

// Align rounds value up to the next multiple of alignment, a power of two.
func Align(value, alignment int) int {
	return (value + (alignment - 1)) &^ (alignment - 1)
}
