// Package packet builds byte-exact Ethernet, IPv4 and TCP frames.
//
// The builders in this package are pure functions of their arguments: they keep
// no counters and share no state, so calling any of them twice with the same
// input yields identical bytes. Sequence numbers, identification values and
// timing are supplied by the caller.
//
// # Layout
//
//	Ethernet: dst(6) | src(6) | type(2)=0x0800 | IPv4 packet
//	IPv4:     0x45 | 0x00 | len(2) | id(2) | 0x4000 | 64 | 6 | csum(2) | src(4) | dst(4) | TCP segment
//	TCP:      sport(2) | dport(2) | seq(4) | ack(4) | 0x50 | flags | 0xFFFF | 0x0000 | 0x0000 | payload
//
// All multi-byte fields are big-endian.
//
// # Usage Example
//
//	frame := packet.BuildFrame(packet.Segment{
//	    SourceIP:        packet.MustParseIPv4("192.168.1.52"),
//	    DestinationIP:   packet.MustParseIPv4("192.168.73.108"),
//	    SourcePort:      54000,
//	    DestinationPort: 9200,
//	    Seq:             1000,
//	    Ack:             2000,
//	    Flags:           packet.FlagsPSHACK,
//	    Payload:         "FA;",
//	})
package packet

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

var (
	// ErrInvalidIPv4 is returned when a dotted-decimal address cannot be parsed.
	ErrInvalidIPv4 = errors.New("packet: invalid IPv4 address")

	// ErrInvalidMAC is returned when a hardware address is not six colon-hex bytes.
	ErrInvalidMAC = errors.New("packet: invalid MAC address")
)

// MACAddr is a 6-byte Ethernet hardware address.
type MACAddr [6]byte

// ParseMAC parses a colon-separated hex hardware address such as
// "60:22:32:6f:95:4f".
//
// Parameters:
//   - s: The textual address.
//
// Returns:
//   - MACAddr: The six raw bytes.
//   - error: ErrInvalidMAC (wrapped with the input) if s is not exactly six bytes.
func ParseMAC(s string) (MACAddr, error) {
	var mac MACAddr
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != len(mac) {
		return mac, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	copy(mac[:], hw)
	return mac, nil
}

// MustParseMAC is like ParseMAC but panics on error. It is meant for
// package-level constants and tests.
func MustParseMAC(s string) MACAddr {
	mac, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return mac
}

// String returns the lower-case colon-hex form.
func (m MACAddr) String() string {
	return net.HardwareAddr(m[:]).String()
}

// IPv4Addr is a 4-byte IPv4 address in network order.
type IPv4Addr [4]byte

// ParseIPv4 parses a dotted-decimal IPv4 address such as "192.168.1.52".
//
// Parameters:
//   - s: The textual address. Each of the four octets must be 0-255.
//
// Returns:
//   - IPv4Addr: The four raw bytes.
//   - error: ErrInvalidIPv4 (wrapped with the input) for anything else,
//     including IPv6 and IPv4-mapped IPv6 literals.
func ParseIPv4(s string) (IPv4Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return IPv4Addr{}, fmt.Errorf("%w: %q", ErrInvalidIPv4, s)
	}
	return IPv4Addr(addr.As4()), nil
}

// MustParseIPv4 is like ParseIPv4 but panics on error.
func MustParseIPv4(s string) IPv4Addr {
	ip, err := ParseIPv4(s)
	if err != nil {
		panic(err)
	}
	return ip
}

// Addr converts the address to a netip.Addr.
func (a IPv4Addr) Addr() netip.Addr {
	return netip.AddrFrom4(a)
}

// String returns the dotted-decimal form.
func (a IPv4Addr) String() string {
	return a.Addr().String()
}
