package protocol

// CRC16 computes the checksum carried in every message trailer: the
// CCITT polynomial, bit-reflected, seeded with 0xffff.
func CRC16(data []byte) uint16 {
	crc := uint16(0xffff)
	for _, b := range data {
		b ^= uint8(crc & 0xff)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ b16>>4 ^ b16<<3
	}
	return crc
}
