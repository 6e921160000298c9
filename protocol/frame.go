package protocol

import "bytes"

// AppendFrame writes one complete framed block to out: a header with
// the given sequence, the payload, then the CRC and sync trailer. The
// length byte is backpatched once the payload size is known.
func AppendFrame(out OutputBuffer, seq uint8, payload func(OutputBuffer)) {
	start := out.CurPosition()
	out.Output([]byte{0, seq})
	if payload != nil {
		payload(out)
	}
	out.Update(start, uint8(len(out.DataSince(start))+MessageTrailerSize))

	crc := CRC16(out.DataSince(start))
	out.Output([]byte{uint8(crc >> 8), uint8(crc & 0xff), MessageSyncByte})
}

// AppendAck writes the five-byte acknowledgement block for seq, which
// is just a frame with no payload.
func AppendAck(out OutputBuffer, seq uint8) {
	AppendFrame(out, seq, nil)
}

// Scanner extracts well-formed blocks from a raw byte stream. It
// starts out trusting the framing; anything malformed (a bad length,
// wrong destination bits, a missing sync byte, a CRC mismatch) drops
// it out of sync until the next sync byte goes past.
//
// Both ends of the link scan the same way, so the host connection and
// the controller endpoint share this type. Feed it from one goroutine.
type Scanner struct {
	synced bool

	// OnMessage receives each well-formed block. The payload
	// aliases the scanned data and is only valid during the call.
	OnMessage func(Message)

	// OnResync fires once sync is regained after garbage.
	OnResync func()
}

// NewScanner returns a synchronized scanner.
func NewScanner() *Scanner {
	return &Scanner{synced: true}
}

// Desync forces the scanner to hunt for the next sync byte before it
// parses anything else.
func (s *Scanner) Desync() { s.synced = false }

// Reset restores the synchronized state without hunting.
func (s *Scanner) Reset() { s.synced = true }

// Synced reports whether the scanner currently trusts its framing.
func (s *Scanner) Synced() bool { return s.synced }

// Scan consumes as many whole blocks from data as possible and returns
// how many bytes it used. A partial block at the tail is left alone so
// the caller can retry once more bytes arrive.
func (s *Scanner) Scan(data []byte) int {
	total := len(data)

	for len(data) > 0 {
		if !s.synced {
			// Hunt for the end of the garbage.
			pos := bytes.IndexByte(data, MessageSyncByte)
			if pos < 0 {
				data = nil
				break
			}
			data = data[pos+1:]
			s.synced = true
			if s.OnResync != nil {
				s.OnResync()
			}
			continue
		}

		// Idle sync bytes between blocks are harmless.
		if data[0] == MessageSyncByte {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePosLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			s.synced = false
			continue
		}

		seq := data[MessagePosSeq]
		if seq&^uint8(MessageSeqMask) != MessageDest {
			s.synced = false
			continue
		}

		if len(data) < msgLen {
			break
		}

		if data[msgLen-1] != MessageSyncByte {
			s.synced = false
			continue
		}

		wire := uint16(data[msgLen-3])<<8 | uint16(data[msgLen-2])
		if wire != CRC16(data[:msgLen-MessageTrailerSize]) {
			s.synced = false
			continue
		}

		msg := Message{
			Length:   data[MessagePosLen],
			Sequence: seq,
			Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
			CRC:      wire,
		}
		data = data[msgLen:]
		if s.OnMessage != nil {
			s.OnMessage(msg)
		}
	}

	return total - len(data)
}
