// Package capture records spied frames to a zstd compressed stream of
// msgpack records and reads them back.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/eapache/channels"
	"github.com/klauspost/compress/zstd"
	msgpack "github.com/vmihailenco/msgpack"

	"github.com/alpacahq/streamspy/utils/log"
)

// Record is one captured frame.
type Record struct {
	Index     int    `msgpack:"index"`
	Ring      string `msgpack:"ring"`
	TypeID    int32  `msgpack:"type"`
	Timestamp int64  `msgpack:"timestamp"`
	Payload   []byte `msgpack:"payload"`
}

// Writer appends records to a capture file from a background goroutine so the
// polling loop never waits on file IO.
type Writer struct {
	f     *os.File
	zw    *zstd.Encoder
	enc   *msgpack.Encoder
	queue *channels.InfiniteChannel
	done  chan struct{}
	err   error
	count int
}

// NewWriter creates or truncates the capture file at path.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create capture encoder: %w", err)
	}
	w := &Writer{
		f:     f,
		zw:    zw,
		enc:   msgpack.NewEncoder(zw),
		queue: channels.NewInfiniteChannel(),
		done:  make(chan struct{}),
	}
	go w.drain()
	return w, nil
}

func (w *Writer) drain() {
	defer close(w.done)
	for v := range w.queue.Out() {
		if w.err != nil {
			continue
		}
		rec := v.(Record)
		if err := w.enc.Encode(&rec); err != nil {
			w.err = fmt.Errorf("encode capture record: %w", err)
			log.Error("capture to %s stopped: %v", w.f.Name(), err)
			continue
		}
		w.count++
	}
}

// Write queues rec. The payload is copied, so it may alias mapped memory.
func (w *Writer) Write(rec Record) {
	rec.Payload = append([]byte(nil), rec.Payload...)
	w.queue.In() <- rec
}

// Close flushes queued records and closes the file. It returns the first
// encoding error, if any.
func (w *Writer) Close() error {
	w.queue.Close()
	<-w.done

	err := w.err
	if zerr := w.zw.Close(); zerr != nil && err == nil {
		err = fmt.Errorf("flush capture file: %w", zerr)
	}
	if ferr := w.f.Close(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

// Count is the number of records written. Only meaningful after Close.
func (w *Writer) Count() int {
	return w.count
}

// Reader iterates the records of a capture file.
type Reader struct {
	f   *os.File
	zr  *zstd.Decoder
	dec *msgpack.Decoder
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open capture decoder: %w", err)
	}
	return &Reader{f: f, zr: zr, dec: msgpack.NewDecoder(zr)}, nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("decode capture record: %w", err)
	}
	return rec, nil
}

func (r *Reader) Close() error {
	r.zr.Close()
	return r.f.Close()
}
