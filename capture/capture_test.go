package capture_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpacahq/streamspy/capture"
)

func TestWriterReader(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "capture.zst")

	w, err := capture.NewWriter(path)
	require.Nil(t, err)

	payload := []byte("window")
	want := []capture.Record{
		{Index: 0, Ring: "streams", TypeID: 1, Timestamp: 10, Payload: []byte("begin")},
		{Index: 3, Ring: "throttle", TypeID: 0x40000002, Timestamp: 11, Payload: payload},
		{Index: 0, Ring: "streams", TypeID: 3, Timestamp: 12, Payload: []byte{}},
	}
	for _, rec := range want {
		w.Write(rec)
	}
	// records are copied on Write
	payload[0] = 'X'
	require.Nil(t, w.Close())
	assert.Equal(t, 3, w.Count())

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
	require.Len(t, got, 3)
	assert.Equal(t, "streams", got[0].Ring)
	assert.Equal(t, []byte("begin"), got[0].Payload)
	assert.Equal(t, int32(0x40000002), got[1].TypeID)
	assert.Equal(t, []byte("window"), got[1].Payload)
	assert.Equal(t, int64(12), got[2].Timestamp)
	assert.Empty(t, got[2].Payload)
}

func TestWriter_Empty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "empty.zst")
	w, err := capture.NewWriter(path)
	require.Nil(t, err)
	require.Nil(t, w.Close())

	r, err := capture.OpenReader(path)
	require.Nil(t, err)
	defer r.Close()
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestOpenReader_Missing(t *testing.T) {
	t.Parallel()
	_, err := capture.OpenReader(filepath.Join(t.TempDir(), "missing.zst"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
