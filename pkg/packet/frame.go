package packet

// FrameOverhead is the number of header bytes BuildFrame adds to a payload.
const FrameOverhead = EthernetHeaderLen + IPv4HeaderLen + TCPHeaderLen

// Segment describes one application write on a TCP connection.
type Segment struct {
	SourceIP        IPv4Addr
	DestinationIP   IPv4Addr
	SourcePort      uint16
	DestinationPort uint16
	Seq             uint32
	Ack             uint32
	Flags           TCPFlags
	// Payload is copied byte for byte. It is expected to be printable ASCII.
	Payload string
}

// Assembler turns segments into complete Ethernet frames. The same hardware
// addresses are used for every frame, whatever the IP direction.
type Assembler struct {
	Source      MACAddr
	Destination MACAddr
}

// DefaultAssembler uses the synthetic hardware addresses found in the
// reference K4 captures.
var DefaultAssembler = Assembler{
	Source:      MACAddr{0x60, 0x22, 0x32, 0x6f, 0x95, 0x4f},
	Destination: MACAddr{0x64, 0x4b, 0xf0, 0x38, 0x2d, 0x0a},
}

// BuildFrame encapsulates s.Payload in TCP, then IPv4, then Ethernet.
//
// Parameters:
//   - s: Addressing, sequence numbers, flags and payload of the segment.
//
// Returns:
//   - []byte: The frame, exactly FrameOverhead+len(s.Payload) bytes long.
func (a Assembler) BuildFrame(s Segment) []byte {
	tcp := BuildTCP(s.SourcePort, s.DestinationPort, s.Seq, s.Ack, s.Flags, []byte(s.Payload))
	ip := BuildIPv4(s.SourceIP, s.DestinationIP, tcp)
	return BuildEthernet(a.Destination, a.Source, ip)
}

// BuildFrame is DefaultAssembler.BuildFrame.
func BuildFrame(s Segment) []byte {
	return DefaultAssembler.BuildFrame(s)
}
