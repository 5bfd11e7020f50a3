package catalog

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/alpacahq/streamspy/utils/log"
)

// maxWalkDepth bounds how far below the root the walk descends.
const maxWalkDepth = 3

// AllStreams selects every streams file regardless of index.
const AllStreams = ^uint64(0)

var streamsPattern = regexp.MustCompile(`^data(\d+)$`)

// StreamsFile is a backing file of one transport endpoint, named data<Index>.
type StreamsFile struct {
	Index int
	Path  string
}

// ParseStreamsIndex extracts N from a file named data<N>.
func ParseStreamsIndex(name string) (int, bool) {
	m := streamsPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	index, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return index, true
}

// HasAffinity reports whether bit index is set in affinity. Indices outside
// the 64 bits of the mask never match.
func HasAffinity(affinity uint64, index int) bool {
	if index < 0 || index >= 64 {
		return false
	}
	return affinity&(uint64(1)<<uint(index)) != 0
}

// Discover returns the regular files named data<N> that sit exactly one level
// below rootDir and whose bit N is set in affinity, ordered by N.
func Discover(rootDir string, affinity uint64) ([]StreamsFile, error) {
	rootDir = filepath.Clean(rootDir)
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, NotADirectory(rootDir)
	}

	var found []StreamsFile
	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		depth := relativeDepth(rootDir, path)
		if d.IsDir() {
			if depth >= maxWalkDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if depth != 1 || !d.Type().IsRegular() {
			return nil
		}

		index, ok := ParseStreamsIndex(d.Name())
		if !ok {
			return nil
		}
		if !HasAffinity(affinity, index) {
			log.Debug("skipping %s: no affinity for index %d", path, index)
			return nil
		}
		found = append(found, StreamsFile{Index: index, Path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Index < found[j].Index })
	return found, nil
}

func relativeDepth(rootDir, path string) int {
	rel, err := filepath.Rel(rootDir, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
