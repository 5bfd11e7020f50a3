//go:build linux || darwin || freebsd

package layouts

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapping is one mmap'd window of a file. mem starts on a page boundary;
// region is the requested byte range inside it.
type mapping struct {
	mem    []byte
	region []byte
}

func mapRegion(f *os.File, name string, offset, length int64, readonly bool) (*mapping, error) {
	pageSize := int64(unix.Getpagesize())
	pageOffset := offset &^ (pageSize - 1)
	delta := offset - pageOffset

	prot := unix.PROT_READ
	if !readonly {
		prot |= unix.PROT_WRITE
	}
	mem, err := unix.Mmap(int(f.Fd()), pageOffset, int(length+delta), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, UnableToMapRegion(fmt.Sprintf("%s %s [%d, %d): %v", f.Name(), name, offset, offset+length, err))
	}
	return &mapping{
		mem:    mem,
		region: mem[delta : delta+length : delta+length],
	}, nil
}

func (m *mapping) unmap() error {
	if m == nil || m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem, m.region = nil, nil
	return err
}
