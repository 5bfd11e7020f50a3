package executor_test

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpacahq/streamspy/capture"
	"github.com/alpacahq/streamspy/catalog"
	"github.com/alpacahq/streamspy/executor"
	"github.com/alpacahq/streamspy/internal/ringtest"
	"github.com/alpacahq/streamspy/layouts"
	"github.com/alpacahq/streamspy/spy"
)

const (
	typeBegin  int32 = 1
	typeData   int32 = 2
	typeWindow int32 = 0x40000002
)

var names = map[int32]string{typeBegin: "BEGIN", typeData: "DATA", typeWindow: "WINDOW"}

type testFrame struct {
	typeID    int32
	timestamp int64
}

// writeStreams creates root/data<index> and publishes frames on its streams ring.
func writeStreams(t *testing.T, root string, index int, frames ...testFrame) *layouts.StreamsLayout {
	t.Helper()
	l, err := layouts.NewStreamsLayout(layouts.StreamsConfig{
		Path:             filepath.Join(root, "data"+strconv.Itoa(index)),
		StreamsCapacity:  4096,
		ThrottleCapacity: 1024,
	})
	require.Nil(t, err)
	t.Cleanup(func() { _ = l.Close() })

	p := ringtest.NewProducer(l.StreamsBuffer().Buffer())
	for _, f := range frames {
		require.True(t, p.Write(f.typeID, framePayload(int64(index), 0x10, f.timestamp, 0, nil)))
	}
	return l
}

// timestamps extracts the timestamp column of printed frames.
func timestamps(t *testing.T, out string) []int64 {
	t.Helper()
	var ts []int64
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		require.GreaterOrEqual(t, len(fields), 2, line)
		v, err := strconv.ParseInt(strings.Trim(fields[1], "[]"), 0, 64)
		require.Nil(t, err, line)
		ts = append(ts, v)
	}
	return ts
}

func TestHarness_MergesStreamsInTimestampOrder(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeStreams(t, root, 0, testFrame{typeBegin, 1}, testFrame{typeData, 4}, testFrame{typeData, 5})
	writeStreams(t, root, 1, testFrame{typeBegin, 2}, testFrame{typeData, 3}, testFrame{typeData, 6})

	var out bytes.Buffer
	h, err := executor.NewHarness(executor.HarnessConfig{
		Directory: root,
		Affinity:  catalog.AllStreams,
		Position:  spy.ZERO,
		TypeNames: names,
	}, &out)
	require.Nil(t, err)
	defer h.Close()

	require.Nil(t, h.Run(context.Background()))
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, timestamps(t, out.String()))
	assert.Contains(t, out.String(), "[00] [0x0000000000000001] [streams] BEGIN route=0x0000000000000000")
	assert.Contains(t, out.String(), "[01] [0x0000000000000003] [streams] DATA route=0x0000000000000001")
	assert.Len(t, h.Rings(), 4)
}

func TestHarness_Options(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeStreams(t, root, 0, testFrame{typeBegin, 1}, testFrame{typeData, 2}, testFrame{typeData, 3})
	writeStreams(t, root, 3, testFrame{typeBegin, 9})

	tests := map[string]struct {
		cfg     executor.HarnessConfig
		want    []int64
		verbose bool
	}{
		"ok/ affinity selects data3": {
			cfg:  executor.HarnessConfig{Affinity: 1 << 3},
			want: []int64{9},
		},
		"ok/ frame type filter": {
			cfg:  executor.HarnessConfig{Affinity: catalog.AllStreams, FrameTypes: []string{"BEG*"}},
			want: []int64{1, 9},
		},
		"ok/ tail skips everything": {
			cfg:  executor.HarnessConfig{Affinity: catalog.AllStreams, Position: spy.TAIL},
			want: nil,
		},
		"ok/ unordered reads file by file": {
			cfg:  executor.HarnessConfig{Affinity: catalog.AllStreams, Unordered: true},
			want: []int64{1, 9, 2, 3},
		},
		"ok/ verbose": {
			cfg:     executor.HarnessConfig{Affinity: 1, Verbose: true, FrameTypes: []string{"none"}},
			verbose: true,
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			tt.cfg.Directory = root
			tt.cfg.TypeNames = names

			var out bytes.Buffer
			h, err := executor.NewHarness(tt.cfg, &out)
			require.Nil(t, err)
			defer h.Close()
			require.Nil(t, h.Run(context.Background()))

			if tt.verbose {
				path := filepath.Join(root, "data0")
				assert.Equal(t, "Discovered: "+path+"\nAttached: "+path+" (streams 4K, throttle 1K)\n", out.String())
				return
			}
			if tt.want == nil {
				assert.Empty(t, out.String())
				return
			}
			assert.Equal(t, tt.want, timestamps(t, out.String()))
		})
	}
}

func TestHarness_FollowSeesLateFrames(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	l := writeStreams(t, root, 0, testFrame{typeBegin, 1})

	var out syncBuffer
	h, err := executor.NewHarness(executor.HarnessConfig{
		Directory:  root,
		Affinity:   catalog.AllStreams,
		Continuous: true,
		TypeNames:  names,
		MaxPark:    5 * time.Millisecond,
	}, &out)
	require.Nil(t, err)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "BEGIN") }, time.Second, 5*time.Millisecond)
	p := ringtest.NewProducer(l.StreamsBuffer().Buffer())
	require.True(t, p.Write(typeData, framePayload(0, 0x10, 2, 0, nil)))
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "DATA") }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Nil(t, <-done)
}

func TestHarness_Capture(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeStreams(t, root, 2, testFrame{typeBegin, 1}, testFrame{typeData, 2})
	path := filepath.Join(t.TempDir(), "frames.zst")

	h, err := executor.NewHarness(executor.HarnessConfig{
		Directory:   root,
		Affinity:    catalog.AllStreams,
		CaptureFile: path,
	}, io.Discard)
	require.Nil(t, err)
	require.Nil(t, h.Run(context.Background()))
	require.Nil(t, h.Close())

	r, err := capture.OpenReader(path)
	require.Nil(t, err)
	defer r.Close()
	var got []capture.Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.Nil(t, err)
		got = append(got, rec)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Index)
	assert.Equal(t, executor.StreamsRing, got[0].Ring)
	assert.Equal(t, typeBegin, got[0].TypeID)
	assert.Equal(t, int64(2), got[1].Timestamp)
	assert.Len(t, got[1].Payload, executor.FrameHeaderLength)
}

func TestNewHarness_Errors(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeStreams(t, root, 0, testFrame{typeBegin, 1})

	h, err := executor.NewHarness(executor.HarnessConfig{Directory: filepath.Join(root, "missing")}, io.Discard)
	assert.NotNil(t, err)
	assert.Nil(t, h)

	_, err = executor.NewHarness(executor.HarnessConfig{Directory: root, FrameTypes: []string{"[x"}}, io.Discard)
	assert.NotNil(t, err)

	// capture directory does not exist
	h, err = executor.NewHarness(executor.HarnessConfig{
		Directory:   root,
		Affinity:    catalog.AllStreams,
		CaptureFile: filepath.Join(root, "missing", "frames.zst"),
	}, io.Discard)
	assert.NotNil(t, err)
	assert.Nil(t, h)

	// a non-streams file that happens to be named data<N>, found after data0
	// was already attached
	garbage := filepath.Join(root, "data1")
	require.Nil(t, writeFile(garbage, []byte("garbage")))
	var out bytes.Buffer
	h, err = executor.NewHarness(executor.HarnessConfig{
		Directory:   root,
		Affinity:    catalog.AllStreams,
		Verbose:     true,
		CaptureFile: filepath.Join(t.TempDir(), "frames.zst"),
	}, &out)
	assert.ErrorIs(t, err, layouts.ErrMalformedHeader)
	assert.Nil(t, h)
	// the bad file is reported before attaching to it
	assert.Contains(t, out.String(), "Discovered: "+garbage+"\n")
	assert.NotContains(t, out.String(), "Attached: "+garbage)
}
