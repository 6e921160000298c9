package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrClosed is returned once a Conn has been closed.
var ErrClosed = errors.New("protocol: connection closed")

// DefaultTimeout bounds how long a Conn waits for an acknowledgement
// or response when the caller doesn't say otherwise.
const DefaultTimeout = 2 * time.Second

// Conn is the host side of the link. It frames and sequences outgoing
// commands over an io.ReadWriteCloser (usually a serial port), waits
// for the controller's acknowledgement of each one, and sorts incoming
// traffic into acknowledgements and responses.
//
// A background goroutine owns all reads from the port. Conn methods
// are safe for concurrent use; commands go out one at a time.
type Conn struct {
	port io.ReadWriteCloser

	sendMu sync.Mutex // serializes commands; guards seq
	seq    uint8

	acks      chan Message
	responses chan Message

	handlerMu sync.Mutex
	handler   ResponseHandler

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn starts driving the port and returns the connection.
func NewConn(port io.ReadWriteCloser) *Conn {
	c := &Conn{
		port:      port,
		seq:       MessageDest,
		acks:      make(chan Message, 1),
		responses: make(chan Message, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// SendCommand frames one command, writes it to the port and waits for
// the controller to acknowledge it.
func (c *Conn) SendCommand(cmd uint16, args func(OutputBuffer)) error {
	return c.SendCommandTimeout(cmd, args, DefaultTimeout)
}

// SendCommandTimeout is SendCommand with an explicit acknowledgement
// deadline.
func (c *Conn) SendCommandTimeout(cmd uint16, args func(OutputBuffer), timeout time.Duration) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	out := NewScratch()
	AppendFrame(out, c.seq, func(o OutputBuffer) {
		EncodeUint32(o, uint32(cmd))
		if args != nil {
			args(o)
		}
	})
	frame := out.Bytes()
	if len(frame) > MessageLengthMax {
		return fmt.Errorf("protocol: command 0x%02x does not fit in one block (%d bytes)", cmd, len(frame))
	}

	if _, err := c.port.Write(frame); err != nil {
		return fmt.Errorf("protocol: write failed: %w", err)
	}

	return c.waitForAck(timeout)
}

func (c *Conn) waitForAck(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// The controller acknowledges with the sequence it expects next,
	// so a successful ack carries our value plus one.
	want := (c.seq+1)&MessageSeqMask | MessageDest

	for {
		select {
		case ack := <-c.acks:
			if ack.Sequence != want {
				// A nak, or a stale ack from before a reset.
				continue
			}
			c.seq = want
			return nil
		case <-timer.C:
			return fmt.Errorf("protocol: no acknowledgement after %v", timeout)
		case <-c.stop:
			return ErrClosed
		}
	}
}

// ReceiveResponse returns the next response block, waiting up to
// timeout for one to arrive.
func (c *Conn) ReceiveResponse(timeout time.Duration) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-c.responses:
		return m, nil
	case <-timer.C:
		return Message{}, fmt.Errorf("protocol: no response after %v", timeout)
	case <-c.stop:
		return Message{}, ErrClosed
	}
}

// OnResponse registers a handler that sees every response as it
// arrives, before the response is queued for ReceiveResponse.
func (c *Conn) OnResponse(handler ResponseHandler) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// Sequence returns the sequence value the next command will carry.
func (c *Conn) Sequence() uint8 {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.seq
}

// Reset rewinds the sequence counter and drains any queued traffic.
// Use it after power-cycling the controller.
func (c *Conn) Reset() {
	c.sendMu.Lock()
	c.seq = MessageDest
	c.sendMu.Unlock()

	for {
		select {
		case <-c.acks:
		case <-c.responses:
		default:
			return
		}
	}
}

// Close stops the reader and closes the port. Safe to call more than
// once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		// Closing the port unblocks the pending Read.
		err = c.port.Close()
		<-c.done
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.done)

	scanner := NewScanner()
	scanner.OnMessage = c.dispatch
	fifo := NewFifo(ScratchCapacity)
	buf := make([]byte, 256)

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		n, err := c.port.Read(buf)
		if n > 0 {
			fifo.Write(buf[:n])
			if consumed := scanner.Scan(fifo.Data()); consumed > 0 {
				fifo.Pop(consumed)
			}
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			// Serial ports hand back transient errors; back off
			// briefly rather than spinning.
			select {
			case <-c.stop:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

func (c *Conn) dispatch(m Message) {
	// The scanner's payload aliases the read buffer, so keep our own
	// copy before it is overwritten.
	payload := make([]byte, len(m.Payload))
	copy(payload, m.Payload)
	m.Payload = payload

	if len(m.Payload) == 0 {
		// An empty block acknowledges our last command.
		select {
		case c.acks <- m:
		default:
		}
		return
	}

	c.handlerMu.Lock()
	handler := c.handler
	c.handlerMu.Unlock()
	if handler != nil {
		cursor := m.Payload
		if cmd, err := DecodeUint32(&cursor); err == nil {
			_ = handler(uint16(cmd), &cursor)
		}
	}

	select {
	case c.responses <- m:
	default:
		// Queue full: drop the oldest so the newest response wins.
		select {
		case <-c.responses:
		default:
		}
		select {
		case c.responses <- m:
		default:
		}
	}
}
