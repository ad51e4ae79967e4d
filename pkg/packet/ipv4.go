package packet

import "encoding/binary"

const (
	// IPv4HeaderLen is the size of an IPv4 header without options.
	IPv4HeaderLen = 20

	// DefaultIdentification is the identification value BuildIPv4 stamps
	// on every packet.
	DefaultIdentification uint16 = 0x1234

	// ProtocolTCP is the IPv4 protocol number of TCP.
	ProtocolTCP uint8 = 6

	ipv4VersionIHL    = 0x45   // version 4, 5 words
	ipv4DontFragment  = 0x4000 // DF set, offset 0
	ipv4TTL           = 64
	ipv4ChecksumIndex = 10
)

// IPv4Header holds the variable fields of an option-less IPv4 header.
// Version/IHL, type of service, flags/fragment offset and TTL are fixed.
type IPv4Header struct {
	// TotalLength is the header plus payload size. Encode sets it.
	TotalLength uint16

	ID       uint16
	Protocol uint8

	// Checksum is the header checksum. Encode computes it.
	Checksum uint16

	Source      IPv4Addr
	Destination IPv4Addr
}

// marshal lays out the 20 header bytes exactly as the fields say, checksum
// included.
func (h IPv4Header) marshal() []byte {
	b := make([]byte, IPv4HeaderLen)
	b[0] = ipv4VersionIHL
	b[1] = 0
	binary.BigEndian.PutUint16(b[2:4], h.TotalLength)
	binary.BigEndian.PutUint16(b[4:6], h.ID)
	binary.BigEndian.PutUint16(b[6:8], ipv4DontFragment)
	b[8] = ipv4TTL
	b[9] = h.Protocol
	binary.BigEndian.PutUint16(b[ipv4ChecksumIndex:ipv4ChecksumIndex+2], h.Checksum)
	copy(b[12:16], h.Source[:])
	copy(b[16:20], h.Destination[:])
	return b
}

// MaxIPv4Payload is the largest payload whose total length fits the 16-bit
// field. Longer payloads are not supported: the field would wrap.
const MaxIPv4Payload = 0xFFFF - IPv4HeaderLen

// Encode returns the header followed by payload.
//
// The header is built in two passes: first with the checksum field zero to
// compute the checksum, then again with the computed value in place. The
// receiver is not modified; TotalLength and Checksum on h are ignored.
func (h IPv4Header) Encode(payload []byte) []byte {
	h.TotalLength = uint16(IPv4HeaderLen + len(payload))
	h.Checksum = 0
	h.Checksum = Checksum(h.marshal())

	header := h.marshal()
	b := make([]byte, 0, len(header)+len(payload))
	b = append(b, header...)
	return append(b, payload...)
}

// BuildIPv4 wraps a TCP segment in an IPv4 packet.
//
// Parameters:
//   - src: Source address.
//   - dst: Destination address.
//   - payload: The encapsulated TCP segment.
//
// Returns:
//   - []byte: A 20-byte header (protocol 6, identification
//     DefaultIdentification, DF set, TTL 64, valid checksum) followed by payload.
//     The total-length field is 20 + len(payload) for payloads up to
//     MaxIPv4Payload bytes; larger payloads are not supported.
func BuildIPv4(src, dst IPv4Addr, payload []byte) []byte {
	return IPv4Header{
		ID:          DefaultIdentification,
		Protocol:    ProtocolTCP,
		Source:      src,
		Destination: dst,
	}.Encode(payload)
}
