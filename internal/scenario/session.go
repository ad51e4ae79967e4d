package scenario

import (
	"github.com/Eissayou/k4pcap/pkg/packet"
)

// Default connection parameters of the reference captures: a client on the
// LAN talking to the radio's direct-control port.
const (
	DefaultClientIP   = "192.168.1.52"
	DefaultServerIP   = "192.168.73.108"
	DefaultClientPort = 54000
	DefaultServerPort = 9200
	DefaultClientSeq  = 1000
	DefaultServerSeq  = 2000
)

// Endpoints is the fixed addressing of one TCP connection plus the initial
// sequence numbers of both sides.
type Endpoints struct {
	ClientIP   packet.IPv4Addr
	ServerIP   packet.IPv4Addr
	ClientPort uint16
	ServerPort uint16
	ClientSeq  uint32
	ServerSeq  uint32
}

// DefaultEndpoints returns the addressing used by the reference captures.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ClientIP:   packet.MustParseIPv4(DefaultClientIP),
		ServerIP:   packet.MustParseIPv4(DefaultServerIP),
		ClientPort: DefaultClientPort,
		ServerPort: DefaultServerPort,
		ClientSeq:  DefaultClientSeq,
		ServerSeq:  DefaultServerSeq,
	}
}

// Packet is a segment ready for assembly together with its capture time.
type Packet struct {
	Timestamp float64
	Segment   packet.Segment
}

// Session renders steps one at a time. Each pipeline owns its own Session;
// it is not safe for concurrent use.
type Session struct {
	ep        Endpoints
	clientSeq uint32
	serverSeq uint32
	clock     float64
}

// NewSession starts a session at start (seconds since the epoch).
func NewSession(ep Endpoints, start float64) *Session {
	return &Session{
		ep:        ep,
		clientSeq: ep.ClientSeq,
		serverSeq: ep.ServerSeq,
		clock:     start,
	}
}

// Clock returns the timestamp the next step will get.
func (s *Session) Clock() float64 { return s.clock }

// Next turns st into a segment stamped with the current clock, then advances
// the sender's sequence number by the command length and the clock by
// st.Delay.
func (s *Session) Next(st Step) Packet {
	seg := packet.Segment{
		Flags:   packet.FlagsPSHACK,
		Payload: st.Command,
	}
	switch st.Direction {
	case ServerToClient:
		seg.SourceIP, seg.DestinationIP = s.ep.ServerIP, s.ep.ClientIP
		seg.SourcePort, seg.DestinationPort = s.ep.ServerPort, s.ep.ClientPort
		seg.Seq, seg.Ack = s.serverSeq, s.clientSeq
		s.serverSeq += uint32(len(st.Command))
	default:
		seg.SourceIP, seg.DestinationIP = s.ep.ClientIP, s.ep.ServerIP
		seg.SourcePort, seg.DestinationPort = s.ep.ClientPort, s.ep.ServerPort
		seg.Seq, seg.Ack = s.clientSeq, s.serverSeq
		s.clientSeq += uint32(len(st.Command))
	}

	p := Packet{Timestamp: s.clock, Segment: seg}
	s.clock += st.Delay
	return p
}

// Render runs a fresh session over every step of sc.
func Render(sc Scenario, ep Endpoints, start float64) []Packet {
	sess := NewSession(ep, start)
	out := make([]Packet, 0, len(sc.Steps))
	for _, st := range sc.Steps {
		out = append(out, sess.Next(st))
	}
	return out
}
