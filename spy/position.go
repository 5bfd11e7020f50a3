package spy

import (
	"fmt"
	"strings"
)

// SpyPosition selects where a freshly attached spy starts reading.
type SpyPosition int

const (
	// ZERO replays whatever is still physically present from position 0.
	ZERO SpyPosition = iota
	// HEAD starts at the real consumer's current position.
	HEAD
	// TAIL skips everything written so far and follows new records only.
	TAIL
)

func (p SpyPosition) String() string {
	switch p {
	case ZERO:
		return "start"
	case HEAD:
		return "live"
	case TAIL:
		return "tail"
	default:
		return fmt.Sprintf("SpyPosition(%d)", int(p))
	}
}

// ParseSpyPosition accepts start|zero, live|head and tail, case insensitive.
func ParseSpyPosition(s string) (SpyPosition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "start", "zero":
		return ZERO, nil
	case "live", "head":
		return HEAD, nil
	case "tail":
		return TAIL, nil
	default:
		return ZERO, fmt.Errorf("unknown spy position %q, want start, live or tail", s)
	}
}
