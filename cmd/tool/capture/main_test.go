package capture

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpacahq/streamspy/capture"
)

func TestPrintCapture(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "frames.zst")
	w, err := capture.NewWriter(path)
	require.Nil(t, err)
	w.Write(capture.Record{Index: 1, Ring: "streams", TypeID: 2, Timestamp: 3, Payload: []byte{0xca, 0xfe}})
	w.Write(capture.Record{Index: 4, Ring: "throttle", TypeID: -1, Timestamp: 5})
	require.Nil(t, w.Close())

	var out bytes.Buffer
	require.Nil(t, printCapture(&out, path, true))
	assert.Equal(t,
		"[01] [0x0000000000000003] [streams] 0x00000002 length=2\n"+
			"  cafe\n"+
			"[04] [0x0000000000000005] [throttle] 0xffffffff length=0\n"+
			"  \n"+
			"2 records\n", out.String())
}

func TestPrintCapture_Missing(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	assert.NotNil(t, printCapture(&out, filepath.Join(t.TempDir(), "none.zst"), false))
}
