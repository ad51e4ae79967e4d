// Package pcapfile writes and reads classic libpcap capture files.
//
// Files use microsecond timestamps, little-endian byte order, a snapshot
// length of 65535 and the Ethernet link type:
//
//	global header (24 bytes): a1b2c3d4 | 2 | 4 | 0 | 0 | 65535 | 1
//	record header (16 bytes): ts_sec | ts_usec | incl_len | orig_len
//
// Records are appended in the order they are written; nothing is ever
// rewritten or sorted.
package pcapfile

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// SnapLen is the snapshot length recorded in the global header.
const SnapLen = 65535

var (
	// ErrHeaderWritten is returned by a second WriteGlobalHeader call.
	ErrHeaderWritten = errors.New("pcapfile: global header already written")

	// ErrHeaderMissing is returned when a record is written before the
	// global header.
	ErrHeaderMissing = errors.New("pcapfile: global header not written")

	// ErrInvalidTimestamp is returned for timestamps that do not fit an
	// unsigned 32-bit seconds field.
	ErrInvalidTimestamp = errors.New("pcapfile: invalid timestamp")
)

// Writer appends capture records to a stream.
//
// Errors from the underlying stream are returned as is. After such an error
// the stream holds a partial file and should be discarded.
type Writer struct {
	out           *streamWriter
	w             *pcapgo.Writer
	headerWritten bool
}

// streamWriter remembers the last error of the stream under pcapgo, which
// wraps record header failures in its own message.
type streamWriter struct {
	w   io.Writer
	err error
}

func (s *streamWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		s.err = err
	}
	return n, err
}

// NewWriter returns a Writer that writes to w. Nothing is written until
// WriteGlobalHeader is called.
func NewWriter(w io.Writer) *Writer {
	out := &streamWriter{w: w}
	return &Writer{out: out, w: pcapgo.NewWriter(out)}
}

// streamErr returns the stream's own error if it caused err.
func (w *Writer) streamErr(err error) error {
	if err != nil && w.out.err != nil {
		return w.out.err
	}
	return err
}

// WriteGlobalHeader writes the 24-byte file header. It must be called exactly
// once, before any record.
func (w *Writer) WriteGlobalHeader() error {
	if w.headerWritten {
		return ErrHeaderWritten
	}
	w.out.err = nil
	if err := w.w.WriteFileHeader(SnapLen, layers.LinkTypeEthernet); err != nil {
		return w.streamErr(err)
	}
	w.headerWritten = true
	return nil
}

// WriteRecord appends one frame stamped with ts, given in seconds since the
// Unix epoch.
//
// Parameters:
//   - ts: Fractional seconds. The microsecond part is truncated, not rounded.
//   - frame: Raw frame bytes. Captured and original length are both len(frame).
//
// Returns:
//   - error: ErrHeaderMissing, ErrInvalidTimestamp, or the stream's own error.
func (w *Writer) WriteRecord(ts float64, frame []byte) error {
	secs, usecs, err := SplitTimestamp(ts)
	if err != nil {
		return err
	}
	return w.writeRecord(time.Unix(int64(secs), int64(usecs)*int64(time.Microsecond)), frame)
}

// WriteRecordTime is WriteRecord for a time.Time. Sub-microsecond precision
// is dropped.
func (w *Writer) WriteRecordTime(ts time.Time, frame []byte) error {
	if ts.Unix() < 0 || ts.Unix() > math.MaxUint32 {
		return ErrInvalidTimestamp
	}
	return w.writeRecord(ts.Truncate(time.Microsecond), frame)
}

func (w *Writer) writeRecord(ts time.Time, frame []byte) error {
	if !w.headerWritten {
		return ErrHeaderMissing
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	w.out.err = nil
	return w.streamErr(w.w.WritePacket(ci, frame))
}

// SplitTimestamp splits fractional seconds into whole seconds and the
// truncated microsecond remainder: 1000.5 gives (1000, 500000).
func SplitTimestamp(ts float64) (secs, usecs uint32, err error) {
	if math.IsNaN(ts) || ts < 0 || ts >= math.MaxUint32+1 {
		return 0, 0, ErrInvalidTimestamp
	}
	whole := math.Floor(ts)
	frac := math.Floor((ts - whole) * 1_000_000)
	if frac > 999_999 {
		frac = 999_999
	}
	return uint32(whole), uint32(frac), nil
}

// Seconds converts a time to the fractional-seconds form WriteRecord takes.
func Seconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
