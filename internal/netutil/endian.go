// Package netutil holds the byte-level primitives shared by the CCIEFB and
// SLMP codecs: explicit endianness conversion, netmask validation, directed
// broadcast computation, and the MAC byte-reversal used at the SLMP payload
// boundary. Centralizing these here means the codecs never scatter raw
// byte-order logic through business logic (see design note in spec.md §9).
package netutil

import "encoding/binary"

// PutLE16 writes v into b[0:2] little-endian.
func PutLE16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// LE16 reads a little-endian uint16 from b[0:2].
func LE16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

// PutLE32 writes v into b[0:4] little-endian.
func PutLE32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// LE32 reads a little-endian uint32 from b[0:4].
func LE32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// PutLE64 writes v into b[0:8] little-endian.
func PutLE64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// LE64 reads a little-endian uint64 from b[0:8].
func LE64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

// PutBE16 writes v into b[0:2] big-endian. Used only for the sub1 magic.
func PutBE16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }

// BE16 reads a big-endian uint16 from b[0:2]. Used only for the sub1 magic.
func BE16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
