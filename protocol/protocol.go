// Package protocol implements the framed serial protocol spoken
// between a host and a remote motion controller.
//
// Messages travel in both directions as small framed blocks:
//
//	[length] [sequence] payload... [crc16 high] [crc16 low] [sync]
//
// The length byte covers the whole block. The sequence byte carries a
// 4-bit wrapping counter in its low bits with the destination bits
// 0x10 in its high bits. Payloads are command streams: a VLQ command
// id followed by VLQ-encoded arguments, repeated. A block whose
// payload is empty acknowledges the last block received.
//
// Either side recovers from line noise by hunting for the trailing
// sync byte and carrying on from there.
package protocol

// Version is the protocol revision reported by the identify handshake.
// Hosts refuse to drive controllers from another minor revision.
const Version = "0.1.0"

// Framing layout.
const (
	MessageHeaderSize  = 2 // length, sequence
	MessageTrailerSize = 3 // crc16, sync
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64

	MessagePosLen = 0
	MessagePosSeq = 1

	MessageSyncByte = 0x7e
	// MessageDest occupies the high bits of every sequence byte.
	MessageDest    = 0x10
	MessageSeqMask = 0x0f
)

// Command ids understood by a motion controller, and the response ids
// it answers with. Step and the pin commands are acknowledged by the
// transport alone; the rest produce a response block.
const (
	CmdIdentify     uint16 = 0x01
	CmdPing         uint16 = 0x02
	CmdGetPosition  uint16 = 0x03
	CmdStep         uint16 = 0x10
	CmdPinMode      uint16 = 0x11
	CmdDigitalWrite uint16 = 0x12
	CmdDelay        uint16 = 0x13

	RespIdentify uint16 = 0x81
	RespPong     uint16 = 0x82
	RespPosition uint16 = 0x83
)

// Message is one parsed block, header and trailer stripped from the
// payload.
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte
	CRC      uint16
}

// CommandHandler consumes one decoded command. The handler must
// advance data past the arguments it reads; whatever remains is
// treated as the next command in the block.
type CommandHandler func(cmd uint16, data *[]byte) error

// ResponseHandler observes responses as a Conn receives them.
type ResponseHandler func(cmd uint16, data *[]byte) error
