package packet

// Checksum computes the Internet checksum (RFC 1071) of b.
//
// The buffer is read as big-endian 16-bit words. An odd trailing byte is
// treated as if followed by a zero byte; b itself is never modified. The sum is
// folded until no carry bits remain and the one's complement is returned.
//
// Verifying a header that already carries its checksum yields 0.
func Checksum(b []byte) uint16 {
	var sum uint64
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint64(b[i])<<8 | uint64(b[i+1])
	}
	if n%2 == 1 {
		sum += uint64(b[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return ^uint16(sum)
}
