// Package pkttest builds raw TPX3 packet words for use in tests across
// the scanner, decode, and merge packages.
package pkttest

import (
	"encoding/binary"

	"github.com/jbrzusto/tpx3engine/packet"
)

// AddrFor returns the pixel address that decodes to local coordinates
// (x, y), the inverse of packet.DecodeLocalXY.
func AddrFor(x, y uint8) uint16 {
	return packet.EncodeLocalXY(x, y)
}

// Header returns a section header packet for the given chip id.
func Header(chipID uint8) uint64 {
	return 0x33585054 | uint64(chipID)<<32
}

// Trigger returns a trigger packet carrying the given 30-bit timestamp.
func Trigger(timestamp uint32) uint64 {
	return uint64(0x6F)<<56 | uint64(timestamp&0x3FFFFFFF)<<12
}

// Hit returns a hit packet with the given raw fields.
func Hit(addr, toa, tot uint16, ftoa uint8, spidr uint16) uint64 {
	var raw uint64
	raw |= uint64(0xB) << 60
	raw |= uint64(addr&0xFFFF) << 44
	raw |= uint64(toa&0x3FFF) << 30
	raw |= uint64(tot&0x3FF) << 20
	raw |= uint64(ftoa&0xF) << 16
	raw |= uint64(spidr)
	return raw
}

// AppendPacket appends the little-endian bytes of raw to buf.
func AppendPacket(buf []byte, raw uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], raw)
	return append(buf, b[:]...)
}

// Build concatenates packet words into a byte stream.
func Build(packets ...uint64) []byte {
	var buf []byte
	for _, p := range packets {
		buf = AppendPacket(buf, p)
	}
	return buf
}
