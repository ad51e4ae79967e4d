package packet

import "encoding/binary"

const (
	// EthernetHeaderLen is the size of an untagged Ethernet II header.
	EthernetHeaderLen = 14

	// EtherTypeIPv4 identifies an IPv4 payload.
	EtherTypeIPv4 uint16 = 0x0800
)

// EthernetHeader is an untagged Ethernet II header. It carries no checksum;
// the frame check sequence is not part of captured frames.
type EthernetHeader struct {
	Destination MACAddr
	Source      MACAddr
	EtherType   uint16
}

// Encode returns the header followed by payload. No minimum-length padding is
// applied.
func (h EthernetHeader) Encode(payload []byte) []byte {
	b := make([]byte, EthernetHeaderLen+len(payload))
	copy(b[0:6], h.Destination[:])
	copy(b[6:12], h.Source[:])
	binary.BigEndian.PutUint16(b[12:14], h.EtherType)
	copy(b[EthernetHeaderLen:], payload)
	return b
}

// BuildEthernet frames an IPv4 payload between two hardware addresses.
//
// Parameters:
//   - dst: Destination hardware address (first on the wire).
//   - src: Source hardware address.
//   - payload: The encapsulated IPv4 packet.
//
// Returns:
//   - []byte: dst | src | 0x0800 | payload.
func BuildEthernet(dst, src MACAddr, payload []byte) []byte {
	return EthernetHeader{
		Destination: dst,
		Source:      src,
		EtherType:   EtherTypeIPv4,
	}.Encode(payload)
}
