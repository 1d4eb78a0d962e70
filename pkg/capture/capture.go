// Package capture records bus traffic to CBOR files and plays it back.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/roffe/gobs1200"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor decoder mode: %v", err))
	}
}

// Record is one captured frame.
type Record struct {
	Time       time.Time `cbor:"1,keyasint"`
	Identifier uint32    `cbor:"2,keyasint"`
	Extended   bool      `cbor:"3,keyasint,omitempty"`
	Outgoing   bool      `cbor:"4,keyasint,omitempty"`
	Data       []byte    `cbor:"5,keyasint"`
}

func FromFrame(f *bs1200.Frame, at time.Time) Record {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Record{
		Time:       at,
		Identifier: f.Identifier,
		Extended:   f.Extended,
		Outgoing:   f.Direction == bs1200.Outgoing,
		Data:       data,
	}
}

func (r Record) Frame() *bs1200.Frame {
	dir := bs1200.Incoming
	if r.Outgoing {
		dir = bs1200.Outgoing
	}
	f := bs1200.NewFrame(r.Identifier, r.Data, dir)
	f.Extended = r.Extended
	return f
}

// Writer appends records to a CBOR stream. Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	c      io.Closer
	enc    *cbor.Encoder
	closed bool
	now    func() time.Time
}

func NewWriter(w io.Writer) *Writer {
	cw := &Writer{enc: encMode.NewEncoder(w), now: time.Now}
	if c, ok := w.(io.Closer); ok {
		cw.c = c
	}
	return cw
}

// Create opens path for appending, creating it if needed.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return NewWriter(f), nil
}

func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	return w.enc.Encode(r)
}

// Tap records f stamped with the current time. It matches the signature of
// bs1200.WithFrameTap, encoding errors are dropped.
func (w *Writer) Tap(f *bs1200.Frame) {
	_ = w.Write(FromFrame(f, w.now()))
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.c != nil {
		return w.c.Close()
	}
	return nil
}

type Reader struct {
	c   io.Closer
	dec *cbor.Decoder
}

func NewReader(r io.Reader) *Reader {
	cr := &Reader{dec: decMode.NewDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		cr.c = c
	}
	return cr
}

func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewReader(f), nil
}

// Next returns the next record, io.EOF at the end of the stream.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, err
	}
	return rec, nil
}

// ReadAll returns every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func (r *Reader) Close() error {
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}
