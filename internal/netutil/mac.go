package netutil

// MACLen is the length in bytes of an Ethernet MAC address.
const MACLen = 6

// ReverseMAC returns a copy of mac with its 6 bytes in reverse order.
//
// SLMP payloads carry MAC addresses in reversed byte order relative to
// Ethernet/wire order. Every parse/build crosses this boundary exactly once,
// by calling ReverseMAC on the way in and on the way out — never scattering
// the reversal through business logic.
func ReverseMAC(mac [MACLen]byte) [MACLen]byte {
	var out [MACLen]byte
	for i := 0; i < MACLen; i++ {
		out[i] = mac[MACLen-1-i]
	}
	return out
}
