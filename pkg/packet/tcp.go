package packet

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// TCPHeaderLen is the size of a TCP header without options.
	TCPHeaderLen = 20

	tcpDataOffset = 5 << 4
	tcpWindow     = 0xFFFF
)

// TCPFlags is the raw 8-bit TCP control field.
type TCPFlags uint8

// TCP control bits.
const (
	FlagFIN TCPFlags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagECE
	FlagCWR
)

// FlagsPSHACK is the flag combination carried by every data segment in the
// generated captures.
const FlagsPSHACK = FlagPSH | FlagACK

var flagNames = []string{"FIN", "SYN", "RST", "PSH", "ACK", "URG", "ECE", "CWR"}

// String renders set bits as "PSH|ACK". Zero renders as "-".
func (f TCPFlags) String() string {
	if f == 0 {
		return "-"
	}
	var parts []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// MarshalText implements encoding.TextMarshaler using String.
func (f TCPFlags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses the form produced by String.
func (f *TCPFlags) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "-" || s == "" {
		*f = 0
		return nil
	}
	var v TCPFlags
	for _, part := range strings.Split(s, "|") {
		bit := -1
		for i, name := range flagNames {
			if strings.EqualFold(part, name) {
				bit = i
				break
			}
		}
		if bit < 0 {
			return fmt.Errorf("packet: unknown TCP flag %q", part)
		}
		v |= 1 << bit
	}
	*f = v
	return nil
}

// TCPHeader holds the variable fields of an option-less TCP header.
//
// The checksum is always emitted as zero. Consumers of these fixtures do not
// verify it, and tools that do will flag every segment.
type TCPHeader struct {
	SourcePort      uint16
	DestinationPort uint16
	Seq             uint32
	Ack             uint32
	Flags           TCPFlags
}

// Encode returns the header followed by payload. Flags are written as given.
func (h TCPHeader) Encode(payload []byte) []byte {
	b := make([]byte, TCPHeaderLen+len(payload))
	binary.BigEndian.PutUint16(b[0:2], h.SourcePort)
	binary.BigEndian.PutUint16(b[2:4], h.DestinationPort)
	binary.BigEndian.PutUint32(b[4:8], h.Seq)
	binary.BigEndian.PutUint32(b[8:12], h.Ack)
	b[12] = tcpDataOffset
	b[13] = byte(h.Flags)
	binary.BigEndian.PutUint16(b[14:16], tcpWindow)
	// checksum (16:18) and urgent pointer (18:20) stay zero
	copy(b[TCPHeaderLen:], payload)
	return b
}

// BuildTCP builds a TCP segment.
//
// Parameters:
//   - srcPort, dstPort: Port numbers.
//   - seq, ack: Sequence and acknowledgment numbers.
//   - flags: Combined control bits, e.g. FlagsPSHACK. Not validated.
//   - payload: Application bytes.
//
// Returns:
//   - []byte: A 20-byte header (data offset 5, window 65535, checksum 0,
//     urgent pointer 0) followed by payload.
func BuildTCP(srcPort, dstPort uint16, seq, ack uint32, flags TCPFlags, payload []byte) []byte {
	return TCPHeader{
		SourcePort:      srcPort,
		DestinationPort: dstPort,
		Seq:             seq,
		Ack:             ack,
		Flags:           flags,
	}.Encode(payload)
}
