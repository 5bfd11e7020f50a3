package spy

import (
	"errors"
	"fmt"
)

// CacheLineLength is the unit the trailer fields are padded to.
const CacheLineLength = 64

// Trailer field offsets, relative to the start of the trailer which sits
// directly after the data region. Each field gets two cache lines to itself.
const (
	TailPositionOffset       = CacheLineLength * 2
	HeadCachePositionOffset  = TailPositionOffset + CacheLineLength*2
	HeadPositionOffset       = HeadCachePositionOffset + CacheLineLength*2
	CorrelationCounterOffset = HeadPositionOffset + CacheLineLength*2
	ConsumerHeartbeatOffset  = CorrelationCounterOffset + CacheLineLength*2
	TrailerLength            = ConsumerHeartbeatOffset + CacheLineLength*2
)

// ErrInvalidCapacity is returned when a region's data capacity is not a power of two.
var ErrInvalidCapacity = errors.New("ring buffer capacity must be a positive power of 2")

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}

// CheckCapacity validates the data capacity of a ring buffer, excluding its trailer.
func CheckCapacity(capacity int64) error {
	if !IsPowerOfTwo(capacity) {
		return fmt.Errorf("capacity %d: %w", capacity, ErrInvalidCapacity)
	}
	return nil
}
