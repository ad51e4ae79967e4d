package pcapfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Record is one captured frame as stored in a file.
type Record struct {
	Seconds      uint32
	Microseconds uint32
	Data         []byte
}

// Timestamp returns the record time as fractional seconds.
func (r Record) Timestamp() float64 {
	return float64(r.Seconds) + float64(r.Microseconds)/1e6
}

// File is the decoded content of a capture file.
type File struct {
	LinkType layers.LinkType
	SnapLen  uint32
	Records  []Record
}

// Read decodes every record of a capture from r, in file order.
//
// Parameters:
//   - r: A stream positioned at the global header.
//
// Returns:
//   - *File: Link type, snapshot length and records.
//   - error: Non-nil if the header is not a libpcap header or a record is
//     truncated.
func Read(r io.Reader) (*File, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	f := &File{LinkType: pr.LinkType(), SnapLen: pr.Snaplen()}
	for {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", len(f.Records), err)
		}
		if ci.CaptureLength != ci.Length {
			return nil, fmt.Errorf("record %d: captured length %d differs from original length %d",
				len(f.Records), ci.CaptureLength, ci.Length)
		}
		f.Records = append(f.Records, Record{
			Seconds:      uint32(ci.Timestamp.Unix()),
			Microseconds: uint32(ci.Timestamp.Nanosecond() / 1000),
			Data:         data,
		})
	}
}

// ReadFile is Read on the named file.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Read(bufio.NewReader(fh))
}
