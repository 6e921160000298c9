package protocol

import "errors"

// ErrTruncated means a decode ran off the end of the buffer.
var ErrTruncated = errors.New("protocol: buffer too short")

// Integers are encoded seven bits per byte, most significant group
// first, with the top bit of each byte flagging a continuation. Small
// negative values ride on sign extension of the first byte, so -1
// still fits in one byte.

// EncodeInt32 appends the VLQ encoding of v to out.
func EncodeInt32(out OutputBuffer, v int32) {
	if !(-(1<<26) <= v && v < (3<<26)) {
		out.Output([]byte{byte((v>>28)&0x7f) | 0x80})
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		out.Output([]byte{byte((v>>21)&0x7f) | 0x80})
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		out.Output([]byte{byte((v>>14)&0x7f) | 0x80})
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		out.Output([]byte{byte((v>>7)&0x7f) | 0x80})
	}
	out.Output([]byte{byte(v & 0x7f)})
}

// EncodeUint32 appends the VLQ encoding of v to out.
func EncodeUint32(out OutputBuffer, v uint32) {
	EncodeInt32(out, int32(v))
}

// DecodeInt32 reads one VLQ integer from the front of data, advancing
// the slice past the consumed bytes.
func DecodeInt32(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrTruncated
	}

	c := uint32((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7f
	if c&0x60 == 0x60 {
		// A set sign bit in the first byte extends all the way up.
		v |= ^uint32(0x1f)
	}

	for c&0x80 != 0 {
		if len(*data) == 0 {
			return 0, ErrTruncated
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = v<<7 | c&0x7f
	}

	return int32(v), nil
}

// DecodeUint32 reads one VLQ integer from the front of data, advancing
// the slice past the consumed bytes.
func DecodeUint32(data *[]byte) (uint32, error) {
	v, err := DecodeInt32(data)
	return uint32(v), err
}

// MarshalInt32 returns the VLQ encoding of v as a fresh slice.
func MarshalInt32(v int32) []byte {
	out := NewScratch()
	EncodeInt32(out, v)
	return out.Bytes()
}

// EncodeBytes appends b to out with a VLQ length prefix.
func EncodeBytes(out OutputBuffer, b []byte) {
	EncodeUint32(out, uint32(len(b)))
	out.Output(b)
}

// DecodeBytes reads one length-prefixed byte slice from the front of
// data. The returned slice aliases data; copy it to keep it.
func DecodeBytes(data *[]byte) ([]byte, error) {
	n, err := DecodeUint32(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < n {
		return nil, ErrTruncated
	}
	b := (*data)[:n]
	*data = (*data)[n:]
	return b, nil
}

// EncodeString appends s to out with a VLQ length prefix.
func EncodeString(out OutputBuffer, s string) {
	EncodeUint32(out, uint32(len(s)))
	out.Output([]byte(s))
}

// DecodeString reads one length-prefixed string from the front of
// data.
func DecodeString(data *[]byte) (string, error) {
	b, err := DecodeBytes(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
