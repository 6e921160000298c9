package protocol

// Endpoint is the controller side of the link. It consumes command
// blocks from the host, acknowledges every one, and writes response
// frames to its output buffer.
//
// The sequence counter does double duty: an incoming block must carry
// the expected value to be dispatched, and the post-increment value
// tags the acknowledgement and any responses. Acknowledgements go out
// before the responses they precede, since the host's queueing relies
// on that order. A block that reuses MessageDest after the counter
// moved on means the host restarted.
//
// Endpoint methods must all be called from one goroutine, typically
// the controller main loop.
type Endpoint struct {
	scanner *Scanner
	nextSeq uint8
	out     OutputBuffer
	handler CommandHandler
	onReset func()
	onFlush func()
}

// NewEndpoint returns an endpoint writing acknowledgements and
// responses to out and dispatching commands to handler.
func NewEndpoint(out OutputBuffer, handler CommandHandler) *Endpoint {
	e := &Endpoint{
		nextSeq: MessageDest,
		out:     out,
		handler: handler,
	}
	e.scanner = NewScanner()
	e.scanner.OnMessage = e.handleMessage
	e.scanner.OnResync = e.ack
	return e
}

// Receive drains input, parsing and dispatching every complete block
// and leaving any partial one buffered.
func (e *Endpoint) Receive(input InputBuffer) {
	consumed := e.scanner.Scan(input.Data())
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (e *Endpoint) handleMessage(m Message) {
	seq := m.Sequence

	if seq == MessageDest && e.nextSeq != MessageDest {
		// The host restarted; follow it back to the beginning.
		e.nextSeq = MessageDest
		if e.onReset != nil {
			e.onReset()
		}
	}

	if seq != e.nextSeq {
		// Out of order. The ack carries the sequence we expect,
		// telling the host where to back up to.
		e.ack()
		return
	}

	e.nextSeq = (seq+1)&MessageSeqMask | MessageDest
	e.ack()
	e.dispatch(m.Payload)
}

func (e *Endpoint) ack() {
	AppendAck(e.out, e.nextSeq)
	if e.onFlush != nil {
		e.onFlush()
	}
}

// dispatch walks the block's command stream: VLQ command id, then
// however many argument bytes that command's handler consumes.
func (e *Endpoint) dispatch(payload []byte) {
	defer func() {
		// A panicking handler leaves the stream in an arbitrary
		// state. Drop sync and let the host sort it out.
		if recover() != nil {
			e.scanner.Desync()
		}
	}()

	for len(payload) > 0 {
		cmd, err := DecodeUint32(&payload)
		if err != nil {
			e.scanner.Desync()
			return
		}
		if e.handler == nil {
			return
		}
		if err := e.handler(uint16(cmd), &payload); err != nil {
			return
		}
	}
}

// Respond writes one response frame tagged with the current sequence.
// Several responses may share a sequence value; only acknowledgements
// advance it.
func (e *Endpoint) Respond(cmd uint16, args func(OutputBuffer)) {
	AppendFrame(e.out, e.nextSeq, func(out OutputBuffer) {
		EncodeUint32(out, uint32(cmd))
		if args != nil {
			args(out)
		}
	})
}

// Reset returns the endpoint to its boot state.
func (e *Endpoint) Reset() {
	e.scanner.Reset()
	e.nextSeq = MessageDest
	if e.onReset != nil {
		e.onReset()
	}
}

// SetResetHook registers a function called whenever a host restart is
// detected or Reset is called.
func (e *Endpoint) SetResetHook(fn func()) { e.onReset = fn }

// SetFlushHook registers a function called right after an
// acknowledgement is written, so a transport can push it out to the
// host immediately instead of waiting for the main loop.
func (e *Endpoint) SetFlushHook(fn func()) { e.onFlush = fn }
