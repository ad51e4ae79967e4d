// Package analyzer decodes capture files and summarises their TCP traffic.
//
// This package supports both traditional PCAP and modern PCAPNG file formats,
// automatically detecting the format based on the file's magic bytes. Every
// IPv4/TCP record is decoded into a Record, in file order, so generated
// fixtures can be checked frame by frame. Other records are counted but not
// decoded.
//
// # Supported Formats
//
//   - PCAP: Traditional libpcap format (magic: 0xa1b2c3d4 or 0xd4c3b2a1)
//   - PCAPNG: Next-generation format (magic: 0x0A0D0D0A)
//
// # Usage Example
//
//	content, err := os.ReadFile("samples/basic_commands.pcap")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	summary, err := analyzer.Inspect(content)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, rec := range summary.Records {
//	    fmt.Printf("%s:%d -> %s:%d %q\n",
//	        rec.SrcIP, rec.SrcPort, rec.DstIP, rec.DstPort, rec.Payload)
//	}
package analyzer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/Eissayou/k4pcap/pkg/packet"
)

// Record is one decoded IPv4/TCP frame.
type Record struct {
	// Index is the zero-based position of the frame in the file, counting
	// skipped frames too.
	Index int `json:"index"`

	Timestamp time.Time `json:"timestamp"`

	// Length is the captured frame length in bytes.
	Length int `json:"length"`

	SrcIP   netip.Addr `json:"srcIP"`
	DstIP   netip.Addr `json:"dstIP"`
	SrcPort uint16     `json:"srcPort"`
	DstPort uint16     `json:"dstPort"`
	Seq     uint32     `json:"seq"`
	Ack     uint32     `json:"ack"`

	Flags packet.TCPFlags `json:"flags"`

	// Payload is the TCP payload as text.
	Payload string `json:"payload"`

	// IPChecksumValid reports whether the IPv4 header checksum verifies.
	IPChecksumValid bool `json:"ipChecksumValid"`

	// TCPChecksum is the checksum field as found in the frame. Generated
	// fixtures always carry zero.
	TCPChecksum uint16 `json:"tcpChecksum"`
}

// Conversation aggregates the frames of one direction of a TCP connection.
type Conversation struct {
	Src     netip.AddrPort `json:"src"`
	Dst     netip.AddrPort `json:"dst"`
	Frames  int            `json:"frames"`
	Payload int            `json:"payloadBytes"`
}

// Summary is the result of Inspect.
type Summary struct {
	LinkType      string         `json:"linkType"`
	Records       []Record       `json:"records"`
	Skipped       int            `json:"skipped"`
	Conversations []Conversation `json:"conversations"`
	PayloadBytes  int            `json:"payloadBytes"`

	// Duration is the time between the first and the last decoded record.
	Duration time.Duration `json:"duration"`
}

// pcapngMagic is the magic byte sequence identifying PCAPNG format files.
// PCAPNG files begin with a Section Header Block (SHB) which starts with 0x0A0D0D0A.
var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// ErrEmpty is returned for content too short to hold a capture header.
var ErrEmpty = errors.New("analyzer: capture is empty")

// Inspect parses a PCAP or PCAPNG file and decodes every IPv4/TCP record.
//
// Parameters:
//   - content: The complete PCAP/PCAPNG file contents as a byte slice.
//
// Returns:
//   - *Summary: Decoded records in file order plus per-direction totals.
//   - error: Non-nil if the file cannot be parsed.
//
// Non-TCP Packets:
//
//	Frames without an IPv4 and a TCP layer (e.g., ARP, UDP, IPv6) are counted
//	in Skipped and not decoded further.
//
// Note: For PCAPNG files, this function assumes Ethernet link type. PCAP files
// use the link type specified in their file header.
func Inspect(content []byte) (*Summary, error) {
	if len(content) < 4 {
		return nil, ErrEmpty
	}
	reader := bytes.NewReader(content)

	var (
		source   gopacket.PacketDataSource
		linkType layers.LinkType
	)
	if bytes.Equal(content[:4], pcapngMagic) {
		ngReader, err := pcapgo.NewNgReader(reader, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to create pcapng reader: %w", err)
		}
		source, linkType = ngReader, layers.LinkTypeEthernet
	} else {
		pcapReader, err := pcapgo.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create pcap reader: %w", err)
		}
		source, linkType = pcapReader, pcapReader.LinkType()
	}

	summary := &Summary{LinkType: linkType.String()}
	convIndex := make(map[[2]netip.AddrPort]int)

	for index := 0; ; index++ {
		data, ci, err := source.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", index, err)
		}

		pkt := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true})
		rec, ok := decodeRecord(pkt)
		if !ok {
			summary.Skipped++
			continue
		}
		rec.Index = index
		rec.Timestamp = ci.Timestamp
		rec.Length = ci.CaptureLength
		summary.add(rec, convIndex)
	}

	if n := len(summary.Records); n > 1 {
		summary.Duration = summary.Records[n-1].Timestamp.Sub(summary.Records[0].Timestamp)
	}
	return summary, nil
}

// add appends rec and folds it into the conversation totals.
func (s *Summary) add(rec Record, convIndex map[[2]netip.AddrPort]int) {
	s.Records = append(s.Records, rec)
	s.PayloadBytes += len(rec.Payload)

	key := [2]netip.AddrPort{
		netip.AddrPortFrom(rec.SrcIP, rec.SrcPort),
		netip.AddrPortFrom(rec.DstIP, rec.DstPort),
	}
	i, ok := convIndex[key]
	if !ok {
		i = len(s.Conversations)
		convIndex[key] = i
		s.Conversations = append(s.Conversations, Conversation{Src: key[0], Dst: key[1]})
	}
	s.Conversations[i].Frames++
	s.Conversations[i].Payload += len(rec.Payload)
}

// decodeRecord extracts the IPv4 and TCP fields of a packet.
//
// Returns:
//   - Record: The decoded fields; Index, Timestamp and Length are left for the
//     caller.
//   - ok: False if the packet has no IPv4 or no TCP layer.
func decodeRecord(pkt gopacket.Packet) (Record, bool) {
	ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return Record{}, false
	}
	tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok {
		return Record{}, false
	}

	src, _ := netip.AddrFromSlice(ip.SrcIP.To4())
	dst, _ := netip.AddrFromSlice(ip.DstIP.To4())
	return Record{
		SrcIP:           src,
		DstIP:           dst,
		SrcPort:         uint16(tcp.SrcPort),
		DstPort:         uint16(tcp.DstPort),
		Seq:             tcp.Seq,
		Ack:             tcp.Ack,
		Flags:           tcpFlags(tcp),
		Payload:         string(tcp.Payload),
		IPChecksumValid: packet.Checksum(ip.Contents) == 0,
		TCPChecksum:     tcp.Checksum,
	}, true
}

func tcpFlags(tcp *layers.TCP) packet.TCPFlags {
	var f packet.TCPFlags
	for _, b := range []struct {
		set  bool
		flag packet.TCPFlags
	}{
		{tcp.FIN, packet.FlagFIN},
		{tcp.SYN, packet.FlagSYN},
		{tcp.RST, packet.FlagRST},
		{tcp.PSH, packet.FlagPSH},
		{tcp.ACK, packet.FlagACK},
		{tcp.URG, packet.FlagURG},
		{tcp.ECE, packet.FlagECE},
		{tcp.CWR, packet.FlagCWR},
	} {
		if b.set {
			f |= b.flag
		}
	}
	return f
}
